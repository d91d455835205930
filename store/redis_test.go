package store

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMiniredis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func startRedis(t *testing.T) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	r, err := NewRedis(ctx, "redis://"+endpoint+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func exerciseStore(t *testing.T, r *Redis) {
	ctx := context.Background()

	t.Run("get miss", func(t *testing.T) {
		_, err := r.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNil)
	})

	t.Run("set get", func(t *testing.T) {
		require.NoError(t, r.Set(ctx, "k", "v", time.Minute))
		v, err := r.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	})

	t.Run("set membership", func(t *testing.T) {
		require.NoError(t, r.SAdd(ctx, "processed_fixtures", "555", "556"))
		require.NoError(t, r.Expire(ctx, "processed_fixtures", time.Hour))
		ok, err := r.SIsMember(ctx, "processed_fixtures", "555")
		require.NoError(t, err)
		assert.True(t, ok)

		members, err := r.SMembers(ctx, "processed_fixtures")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"555", "556"}, members)
	})

	t.Run("lifo pop", func(t *testing.T) {
		for _, v := range []string{"A", "B", "C"} {
			require.NoError(t, r.LPush(ctx, "queue:test", v))
		}

		all, err := r.LRange(ctx, "queue:test", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "B", "A"}, all)

		v, err := r.BLPop(ctx, time.Second, "queue:test")
		require.NoError(t, err)
		assert.Equal(t, "C", v)

		v, err = r.BRPop(ctx, time.Second, "queue:test")
		require.NoError(t, err)
		assert.Equal(t, "A", v)

		n, err := r.LLen(ctx, "queue:test")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("lrem", func(t *testing.T) {
		require.NoError(t, r.RPush(ctx, "queue:rem", "a", "b", "a", "c", "a"))

		n, err := r.LRem(ctx, "queue:rem", 2, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		rest, err := r.LRange(ctx, "queue:rem", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "a"}, rest)
	})

	t.Run("pop timeout", func(t *testing.T) {
		_, err := r.BRPop(ctx, time.Second, "queue:empty")
		assert.ErrorIs(t, err, ErrNil)
	})

	t.Run("wrong type is not unavailability", func(t *testing.T) {
		err := r.LPush(ctx, "k", "x")
		require.ErrorIs(t, err, ErrWrongType)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})
}

func TestRedisStore(t *testing.T) {
	r, _ := startMiniredis(t)
	exerciseStore(t, r)
}

func TestRedisStoreContainer(t *testing.T) {
	exerciseStore(t, startRedis(t))
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := startMiniredis(t)

	require.NoError(t, r.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, r.SAdd(ctx, "s", "1", "2"))
	require.NoError(t, r.Expire(ctx, "s", time.Hour))

	mr.FastForward(59 * time.Second)
	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	mr.FastForward(time.Second)
	_, err = r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNil)

	ok, err := r.SIsMember(ctx, "s", "2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Hour)
	ok, err = r.SIsMember(ctx, "s", "2")
	require.NoError(t, err)
	assert.False(t, ok, "expiry applies to the whole set")
}

func TestRedisBlockingPopWakesOnPush(t *testing.T) {
	ctx := context.Background()
	r, _ := startMiniredis(t)

	got := make(chan string, 1)
	go func() {
		v, _ := r.BLPop(ctx, 5*time.Second, "later")
		got <- v
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.RPush(ctx, "later", "x"))

	select {
	case v := <-got:
		assert.Equal(t, "x", v)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked pop did not wake up")
	}
}

func TestRedisConcurrentPopIsExclusive(t *testing.T) {
	ctx := context.Background()
	r, _ := startMiniredis(t)
	const items = 200
	for i := 0; i < items; i++ {
		require.NoError(t, r.LPush(ctx, "q", strconv.Itoa(i)))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := r.BLPop(ctx, time.Second, "q")
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, items)
	for v, n := range seen {
		assert.Equal(t, 1, n, "value %s popped more than once", v)
	}
}

func TestRedisServerGone(t *testing.T) {
	ctx := context.Background()
	r, mr := startMiniredis(t)
	mr.Close()

	assert.ErrorIs(t, r.Ping(ctx), ErrUnavailable)
	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = r.BLPop(ctx, time.Second, "q")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisCancelledContext(t *testing.T) {
	r, _ := startMiniredis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.LPush(ctx, "q", "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, "redis://127.0.0.1:1/0")
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, ErrUnavailable)
}

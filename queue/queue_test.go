package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchqueue/model"
	"matchqueue/store"
	"matchqueue/store/storetest"
)

func envelope(t model.TaskType, id int64) model.Envelope {
	task, err := model.NewTask(t, model.Target{FixtureID: id})
	if err != nil {
		panic(err)
	}
	return model.NewEnvelope(task)
}

func TestDequeueIsLIFO(t *testing.T) {
	ctx := context.Background()
	q := New(storetest.New(t), "")

	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeScrapeNews, 1)))  // A
	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeScrapeNews, 2)))  // B
	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeScrapeNews, 3)))  // C

	for _, want := range []int64{3, 2, 1} {
		env, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, env)
		assert.Equal(t, want, env.Task.Fixture().FixtureID)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := New(storetest.New(t), "")
	env, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestDequeueMalformed(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	q := New(st, "")
	require.NoError(t, st.LPush(ctx, DefaultKey, "{oops}"))

	env, err := q.Dequeue(ctx, time.Second)
	assert.Nil(t, env)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "{oops}", decodeErr.Raw)
	assert.ErrorIs(t, err, model.ErrMalformedEnvelope)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "malformed payload is consumed")
}

func TestDequeueUnknownType(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	q := New(st, "")
	require.NoError(t, st.LPush(ctx, DefaultKey, `{"type":"unknown_type","match_id":1}`))

	_, err := q.Dequeue(ctx, time.Second)
	var unknown *model.UnknownTaskError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, int64(1), unknown.FixtureID)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	q := New(st, "")
	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeFetchExtendedData, 7)))
	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeScrapeNews, 8)))
	require.NoError(t, q.Enqueue(ctx, envelope(model.TypeScrapeNews, 7)))
	require.NoError(t, st.LPush(ctx, DefaultKey, "garbage"))

	removed, err := q.Remove(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestEnqueueStoreDown(t *testing.T) {
	st, mr := storetest.NewServer(t)
	mr.Close()
	q := New(st, "")
	err := q.Enqueue(context.Background(), envelope(model.TypeScrapeNews, 1))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

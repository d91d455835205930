package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails the first n calls to LPush/Get with ErrUnavailable.
type flaky struct {
	Store
	failures int
	calls    int
	err      error
}

func (f *flaky) LPush(ctx context.Context, key string, values ...string) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Store.LPush(ctx, key, values...)
}

func (f *flaky) Get(ctx context.Context, key string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.Store.Get(ctx, key)
}

func newFlaky(t *testing.T, failures int, err error) *flaky {
	t.Helper()
	r, _ := startMiniredis(t)
	return &flaky{Store: r, failures: failures, err: err}
}

func TestRetryingRecovers(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(t, 2, ErrUnavailable)
	r := WithRetry(f, time.Millisecond, 3)

	require.NoError(t, r.LPush(ctx, "q", "x"))
	assert.Equal(t, 3, f.calls)

	n, err := r.LLen(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRetryingGivesUp(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(t, 10, ErrUnavailable)
	r := WithRetry(f, time.Millisecond, 2)

	err := r.LPush(ctx, "q", "x")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, f.calls)
}

func TestRetryingDoesNotRetryOtherErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("WRONGTYPE")
	f := newFlaky(t, 10, boom)
	r := WithRetry(f, time.Millisecond, 5)

	err := r.LPush(ctx, "q", "x")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.calls)

	f.calls, f.failures = 0, 0
	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNil)
	assert.Equal(t, 1, f.calls)
}

func TestRetryingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFlaky(t, 1000, ErrUnavailable)
	r := WithRetry(f, 10*time.Millisecond, -1)

	time.AfterFunc(30*time.Millisecond, cancel)
	err := r.LPush(ctx, "q", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

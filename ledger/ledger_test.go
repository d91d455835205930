package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchqueue/store"
	"matchqueue/store/storetest"
)

func TestLedger(t *testing.T) {
	ctx := context.Background()
	l := New(storetest.New(t), "")

	ok, err := l.IsNew(ctx, 555)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.MarkSeen(ctx, 555))
	require.NoError(t, l.MarkSeen(ctx, 555))
	require.NoError(t, l.MarkSeen(ctx, 12))

	ok, err = l.IsNew(ctx, 555)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := l.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 555}, ids)
}

func TestLedgerExpiresAsAWhole(t *testing.T) {
	ctx := context.Background()
	st, mr := storetest.NewServer(t)
	l := New(st, DefaultKey)

	require.NoError(t, l.MarkSeen(ctx, 1))
	require.NoError(t, l.RefreshTTL(ctx, DefaultTTL))

	mr.FastForward(20 * 24 * time.Hour)
	require.NoError(t, l.MarkSeen(ctx, 2))
	require.NoError(t, l.RefreshTTL(ctx, DefaultTTL))

	mr.FastForward(29 * 24 * time.Hour)
	ok, err := l.IsNew(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "refreshing keeps earlier entries")

	mr.FastForward(24 * time.Hour)
	ok, err = l.IsNew(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.IsNew(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedgerStoreDown(t *testing.T) {
	ctx := context.Background()
	st, mr := storetest.NewServer(t)
	mr.Close()
	l := New(st, "")

	_, err := l.IsNew(ctx, 1)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, l.MarkSeen(ctx, 1), store.ErrUnavailable)
}

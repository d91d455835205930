// Package storetest runs the store against an in-process redis server for
// unit tests.
package storetest

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"matchqueue/store"
)

// New returns a store connected to a fresh in-process server.
func New(t testing.TB) *store.Redis {
	t.Helper()
	st, _ := NewServer(t)
	return st
}

// NewServer is New that also hands back the server, so tests can advance its
// clock with FastForward or stop it with Close to simulate an outage.
func NewServer(t testing.TB) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := store.NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

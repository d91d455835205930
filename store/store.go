// Package store defines the minimal shared key-value capability the pipeline
// runs against: strings with expiry, sets, and lists with blocking pops.
// Redis satisfies it; unit tests run it against an in-process server.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNil is returned for a missing key or a blocking pop that timed out.
	ErrNil = errors.New("store: nil")
	// ErrUnavailable marks failures to reach the store at all.
	ErrUnavailable = errors.New("store: unavailable")
	ErrWrongType   = errors.New("store: operation against a key holding the wrong kind of value")
)

type Store interface {
	Ping(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	SAdd(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	// BLPop and BRPop wait up to timeout and return ErrNil if nothing arrived.
	BLPop(ctx context.Context, timeout time.Duration, key string) (string, error)
	BRPop(ctx context.Context, timeout time.Duration, key string) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
}

// ConnectError is returned by constructors when the store cannot be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to store %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrUnavailable }

package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Store and retries operations that fail with
// ErrUnavailable after a fixed delay. Other errors are returned at once.
type Retrying struct {
	Store
	delay    time.Duration
	attempts int
}

// WithRetry retries each failed operation up to attempts more times,
// waiting delay between tries. attempts < 0 retries until ctx is done.
func WithRetry(s Store, delay time.Duration, attempts int) *Retrying {
	return &Retrying{Store: s, delay: delay, attempts: attempts}
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	var b backoff.BackOff = backoff.NewConstantBackOff(r.delay)
	if r.attempts >= 0 {
		b = backoff.WithMaxRetries(b, uint64(r.attempts))
	}
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !errors.Is(err, ErrUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "store unavailable, backing off", "op", op, "wait", wait, "error", err)
	})
}

func (r *Retrying) Ping(ctx context.Context) error {
	return r.do(ctx, "ping", func() error { return r.Store.Ping(ctx) })
}

func (r *Retrying) Get(ctx context.Context, key string) (v string, err error) {
	err = r.do(ctx, "get", func() error {
		v, err = r.Store.Get(ctx, key)
		return err
	})
	return v, err
}

func (r *Retrying) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.do(ctx, "set", func() error { return r.Store.Set(ctx, key, value, ttl) })
}

func (r *Retrying) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.do(ctx, "expire", func() error { return r.Store.Expire(ctx, key, ttl) })
}

func (r *Retrying) SAdd(ctx context.Context, key string, members ...string) error {
	return r.do(ctx, "sadd", func() error { return r.Store.SAdd(ctx, key, members...) })
}

func (r *Retrying) SIsMember(ctx context.Context, key, member string) (ok bool, err error) {
	err = r.do(ctx, "sismember", func() error {
		ok, err = r.Store.SIsMember(ctx, key, member)
		return err
	})
	return ok, err
}

func (r *Retrying) SMembers(ctx context.Context, key string) (members []string, err error) {
	err = r.do(ctx, "smembers", func() error {
		members, err = r.Store.SMembers(ctx, key)
		return err
	})
	return members, err
}

func (r *Retrying) LPush(ctx context.Context, key string, values ...string) error {
	return r.do(ctx, "lpush", func() error { return r.Store.LPush(ctx, key, values...) })
}

func (r *Retrying) RPush(ctx context.Context, key string, values ...string) error {
	return r.do(ctx, "rpush", func() error { return r.Store.RPush(ctx, key, values...) })
}

func (r *Retrying) BLPop(ctx context.Context, timeout time.Duration, key string) (v string, err error) {
	err = r.do(ctx, "blpop", func() error {
		v, err = r.Store.BLPop(ctx, timeout, key)
		return err
	})
	return v, err
}

func (r *Retrying) BRPop(ctx context.Context, timeout time.Duration, key string) (v string, err error) {
	err = r.do(ctx, "brpop", func() error {
		v, err = r.Store.BRPop(ctx, timeout, key)
		return err
	})
	return v, err
}

func (r *Retrying) LLen(ctx context.Context, key string) (n int64, err error) {
	err = r.do(ctx, "llen", func() error {
		n, err = r.Store.LLen(ctx, key)
		return err
	})
	return n, err
}

func (r *Retrying) LRange(ctx context.Context, key string, start, stop int64) (entries []string, err error) {
	err = r.do(ctx, "lrange", func() error {
		entries, err = r.Store.LRange(ctx, key, start, stop)
		return err
	})
	return entries, err
}

func (r *Retrying) LRem(ctx context.Context, key string, count int64, value string) (n int64, err error) {
	err = r.do(ctx, "lrem", func() error {
		n, err = r.Store.LRem(ctx, key, count, value)
		return err
	})
	return n, err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

// NewRedis connects to the redis instance at url (redis://host:port/db) and
// verifies it answers PING.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &ConnectError{Addr: url, Err: err}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &ConnectError{Addr: opts.Addr, Err: err}
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return wrap(r.client.Ping(ctx).Err())
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	return v, wrap(err)
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return wrap(r.client.Set(ctx, key, value, ttl).Err())
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrap(r.client.Expire(ctx, key, ttl).Err())
}

func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	return wrap(r.client.SAdd(ctx, key, toArgs(members)...).Err())
}

func (r *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, key, member).Result()
	return ok, wrap(err)
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	return members, wrap(err)
}

func (r *Redis) LPush(ctx context.Context, key string, values ...string) error {
	return wrap(r.client.LPush(ctx, key, toArgs(values)...).Err())
}

func (r *Redis) RPush(ctx context.Context, key string, values ...string) error {
	return wrap(r.client.RPush(ctx, key, toArgs(values)...).Err())
}

func (r *Redis) BLPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	return popResult(r.client.BLPop(ctx, timeout, key).Result())
}

func (r *Redis) BRPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	return popResult(r.client.BRPop(ctx, timeout, key).Result())
}

func (r *Redis) LLen(ctx context.Context, key string) (int64, error) {
	n, err := r.client.LLen(ctx, key).Result()
	return n, wrap(err)
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	entries, err := r.client.LRange(ctx, key, start, stop).Result()
	return entries, wrap(err)
}

func (r *Redis) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	n, err := r.client.LRem(ctx, key, count, value).Result()
	return n, wrap(err)
}

func popResult(result []string, err error) (string, error) {
	if err != nil {
		return "", wrap(err)
	}
	if len(result) != 2 {
		return "", fmt.Errorf("unexpected blocking pop result: %v", result)
	}
	return result[1], nil
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// wrap maps go-redis errors onto the package errors. Replies from the server
// pass through unchanged; anything else means the server was not reached.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		if strings.HasPrefix(reply.Error(), "WRONGTYPE") {
			return fmt.Errorf("%w: %v", ErrWrongType, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

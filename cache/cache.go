// Package cache is a read-through cache in front of provider calls. Values
// live in the shared store under deterministic keys with a per-endpoint TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"matchqueue/store"
)

const (
	FixturesTTL = time.Hour
	FixtureTTL  = 30 * time.Minute

	fetchTimeout = time.Minute
)

type Cache struct {
	store store.Store
	group singleflight.Group
}

func New(st store.Store) *Cache {
	return &Cache{store: st}
}

// FetchFunc produces the value for a missing key.
type FetchFunc func(ctx context.Context) ([]byte, error)

// GetOrFetch returns the value stored under key, or calls fetch, stores its
// result for ttl and returns it. A failed fetch stores nothing. Concurrent
// misses on the same key share one fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	v, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "cache hit", "key", key)
		return []byte(v), nil
	case errors.Is(err, store.ErrNil):
	default:
		slog.WarnContext(ctx, "cache read failed, fetching directly", "key", key, "error", err)
	}

	// The shared fetch outlives any single caller so one caller going away
	// does not fail the others waiting on the same key.
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		data, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(fctx, key, string(data), ttl); err != nil {
			slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		slog.DebugContext(ctx, "cache miss", "key", key, "shared", res.Shared)
		return res.Val.([]byte), nil
	}
}

// Fetch is GetOrFetch for JSON-encodable values.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return out, nil
}

// FixturesKey is the key for a fixture list query.
func FixturesKey(from, to time.Time, leagues []int) string {
	ids := make([]string, len(leagues))
	for i, id := range leagues {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("fixtures:%s:%s:%s", from.Format(time.DateOnly), to.Format(time.DateOnly), strings.Join(ids, ","))
}

func FixtureKey(id int64) string {
	return "fixture:" + strconv.FormatInt(id, 10)
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"matchqueue/model"
	"matchqueue/store"
)

const DefaultKey = "queue:fixtures"

// Queue is a LIFO list of serialized envelopes in the shared store: pushes
// and pops both happen at the left end, so the newest envelope is popped
// first. Pops are atomic in the store, so each envelope reaches one worker.
type Queue struct {
	store store.Store
	key   string
}

func New(st store.Store, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{store: st, key: key}
}

func (q *Queue) Key() string { return q.key }

func (q *Queue) Ping(ctx context.Context) error {
	return q.store.Ping(ctx)
}

func (q *Queue) Enqueue(ctx context.Context, env model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return q.store.LPush(ctx, q.key, string(data))
}

// Dequeue waits up to blockFor for an envelope. It returns nil, nil when
// nothing arrived in time. Payloads that cannot be decoded are consumed and
// reported as a *DecodeError.
func (q *Queue) Dequeue(ctx context.Context, blockFor time.Duration) (*model.Envelope, error) {
	raw, err := q.store.BLPop(ctx, blockFor, q.key)
	if err != nil {
		if errors.Is(err, store.ErrNil) {
			return nil, nil
		}
		return nil, err
	}

	env, err := model.DecodeEnvelope([]byte(raw))
	if err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	return &env, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.store.LLen(ctx, q.key)
}

// Remove deletes every queued envelope for fixtureID and reports how many
// were removed.
func (q *Queue) Remove(ctx context.Context, fixtureID int64) (int, error) {
	entries, err := q.store.LRange(ctx, q.key, 0, -1)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch queue entries: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		env, err := model.DecodeEnvelope([]byte(entry))
		if err != nil {
			continue
		}
		if env.Task.Fixture().FixtureID != fixtureID {
			continue
		}
		n, err := q.store.LRem(ctx, q.key, 1, entry)
		if err != nil {
			return removed, fmt.Errorf("failed to remove envelope: %w", err)
		}
		removed += int(n)
	}
	if removed > 0 {
		slog.InfoContext(ctx, "removed queued envelopes", "match_id", fixtureID, "count", removed)
	}
	return removed, nil
}

// DecodeError carries a payload popped from the queue that is not a valid
// envelope.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding envelope %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

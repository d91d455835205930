package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"matchqueue/store"
)

const DefaultKey = "queue:fixtures:dead"

// StoreSink keeps dead letters as a list in the shared store. It is used
// when no database is configured.
type StoreSink struct {
	store store.Store
	key   string
}

func NewStoreSink(st store.Store, key string) *StoreSink {
	if key == "" {
		key = DefaultKey
	}
	return &StoreSink{store: st, key: key}
}

func (s *StoreSink) Record(ctx context.Context, l Letter) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.store.LPush(ctx, s.key, string(data))
}

func (s *StoreSink) List(ctx context.Context, limit int) ([]Letter, error) {
	if limit <= 0 {
		return []Letter{}, nil
	}
	entries, err := s.store.LRange(ctx, s.key, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("reading dead letters: %w", err)
	}
	letters := make([]Letter, 0, len(entries))
	for _, e := range entries {
		var l Letter
		if err := json.Unmarshal([]byte(e), &l); err != nil {
			continue
		}
		letters = append(letters, l)
	}
	return letters, nil
}

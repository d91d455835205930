package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"matchqueue/store"
)

const (
	DefaultKey = "processed_fixtures"
	// DefaultTTL is how long the ledger survives after the last scan.
	DefaultTTL = 30 * 24 * time.Hour
)

// Ledger records the fixtures that have already been fanned out. Expiry
// applies to the whole set and is pushed back once per scan.
type Ledger struct {
	store store.Store
	key   string
}

func New(st store.Store, key string) *Ledger {
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{store: st, key: key}
}

func (l *Ledger) IsNew(ctx context.Context, fixtureID int64) (bool, error) {
	seen, err := l.store.SIsMember(ctx, l.key, member(fixtureID))
	if err != nil {
		return false, fmt.Errorf("checking ledger for %d: %w", fixtureID, err)
	}
	return !seen, nil
}

func (l *Ledger) MarkSeen(ctx context.Context, fixtureID int64) error {
	if err := l.store.SAdd(ctx, l.key, member(fixtureID)); err != nil {
		return fmt.Errorf("marking %d seen: %w", fixtureID, err)
	}
	return nil
}

func (l *Ledger) RefreshTTL(ctx context.Context, ttl time.Duration) error {
	if err := l.store.Expire(ctx, l.key, ttl); err != nil {
		return fmt.Errorf("refreshing ledger expiry: %w", err)
	}
	return nil
}

// Members lists the recorded fixture ids in ascending order. Entries that
// are not integers are skipped.
func (l *Ledger) Members(ctx context.Context) ([]int64, error) {
	raw, err := l.store.SMembers(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func member(id int64) string {
	return strconv.FormatInt(id, 10)
}

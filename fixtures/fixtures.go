// Package fixtures serves fixture lists and details from the response cache,
// falling through to the provider on a miss. The scanner and the HTTP API
// both read through here so there is one fetch-and-cache path.
package fixtures

import (
	"context"
	"time"

	"matchqueue/cache"
	"matchqueue/model"
	"matchqueue/provider"
)

// TrackedLeagues is the static allow-list of leagues the scanner follows.
var TrackedLeagues = []int{
	39,  // Premier League
	140, // La Liga
	78,  // Bundesliga
	135, // Serie A
	61,  // Ligue 1
	2,   // Champions League
	3,   // Europa League
	848, // Conference League
}

type Provider interface {
	Fixtures(ctx context.Context, from, to time.Time, leagues []int) ([]provider.Fixture, error)
	Fixture(ctx context.Context, id int64) (provider.Fixture, error)
}

type Service struct {
	cache    *cache.Cache
	provider Provider
}

func NewService(c *cache.Cache, p Provider) *Service {
	return &Service{cache: c, provider: p}
}

// Window returns the UTC calendar dates [today, today+days].
func Window(now time.Time, days int) (from, to time.Time) {
	y, m, d := now.UTC().Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, days)
}

func (s *Service) Upcoming(ctx context.Context, from, to time.Time, leagues []int) ([]model.FixtureRef, error) {
	key := cache.FixturesKey(from, to, leagues)
	return cache.Fetch(ctx, s.cache, key, cache.FixturesTTL, func(ctx context.Context) ([]model.FixtureRef, error) {
		fixtures, err := s.provider.Fixtures(ctx, from, to, leagues)
		if err != nil {
			return nil, err
		}
		refs := make([]model.FixtureRef, 0, len(fixtures))
		for _, f := range fixtures {
			refs = append(refs, f.Ref())
		}
		return refs, nil
	})
}

func (s *Service) Detail(ctx context.Context, id int64) (provider.Fixture, error) {
	return cache.Fetch(ctx, s.cache, cache.FixtureKey(id), cache.FixtureTTL, func(ctx context.Context) (provider.Fixture, error) {
		return s.provider.Fixture(ctx, id)
	})
}

package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchqueue/cache"
	"matchqueue/provider"
	"matchqueue/store/storetest"
)

type stubProvider struct {
	fixtures    []provider.Fixture
	err         error
	listCalls   int
	detailCalls int
}

func (s *stubProvider) Fixtures(_ context.Context, _, _ time.Time, _ []int) ([]provider.Fixture, error) {
	s.listCalls++
	return s.fixtures, s.err
}

func (s *stubProvider) Fixture(_ context.Context, id int64) (provider.Fixture, error) {
	s.detailCalls++
	for _, f := range s.fixtures {
		if f.Fixture.ID == id {
			return f, nil
		}
	}
	return provider.Fixture{}, provider.ErrNotFound
}

func sample() provider.Fixture {
	var f provider.Fixture
	f.Fixture.ID = 555
	f.Fixture.Date = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	f.League = provider.League{ID: 39, Name: "Premier League"}
	f.Teams.Home.Name = "A"
	f.Teams.Away.Name = "B"
	return f
}

func TestWindow(t *testing.T) {
	from, to := Window(time.Date(2024, 1, 1, 23, 30, 0, 0, time.FixedZone("X", -2*3600)), 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), to)
}

func TestUpcomingIsCached(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := &stubProvider{fixtures: []provider.Fixture{sample()}}
	svc := NewService(cache.New(st), p)
	from, to := Window(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2)

	refs, err := svc.Upcoming(ctx, from, to, TrackedLeagues)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(555), refs[0].FixtureID)

	refs, err = svc.Upcoming(ctx, from, to, TrackedLeagues)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "A", refs[0].HomeTeam)
	assert.Equal(t, 1, p.listCalls)

	_, err = st.Get(ctx, cache.FixturesKey(from, to, TrackedLeagues))
	assert.NoError(t, err)
}

func TestDetail(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{fixtures: []provider.Fixture{sample()}}
	svc := NewService(cache.New(storetest.New(t)), p)

	f, err := svc.Detail(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, "B", f.Teams.Away.Name)

	_, err = svc.Detail(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, 1, p.detailCalls)

	_, err = svc.Detail(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrNotFound)
	_, err = svc.Detail(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrNotFound)
	assert.Equal(t, 3, p.detailCalls)
}

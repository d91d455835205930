// Package tasks holds the handlers workers dispatch envelopes to. Only the
// extended data fetch does real work today; news scraping and prediction
// generation are placeholders that acknowledge the task.
package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"matchqueue/model"
	"matchqueue/provider"
)

type DetailFetcher interface {
	Detail(ctx context.Context, id int64) (provider.Fixture, error)
}

type Handlers struct {
	fixtures DetailFetcher
}

var _ model.Handlers = (*Handlers)(nil)

func New(f DetailFetcher) *Handlers {
	return &Handlers{fixtures: f}
}

// FetchExtendedData loads the fixture details through the response cache so
// later readers find them warm.
func (h *Handlers) FetchExtendedData(ctx context.Context, t model.FetchExtendedData) error {
	f, err := h.fixtures.Detail(ctx, t.FixtureID)
	if err != nil {
		return fmt.Errorf("fetching extended data for match %d: %w", t.FixtureID, err)
	}
	slog.InfoContext(ctx, "fetched extended data",
		"status", f.Fixture.Status.Short,
		"home", f.Teams.Home.Name,
		"away", f.Teams.Away.Name,
	)
	return nil
}

func (h *Handlers) ScrapeNews(ctx context.Context, t model.ScrapeNews) error {
	slog.InfoContext(ctx, "would scrape news", "home", t.Metadata.Home, "away", t.Metadata.Away)
	return nil
}

func (h *Handlers) GeneratePrediction(ctx context.Context, t model.GeneratePrediction) error {
	slog.InfoContext(ctx, "would generate prediction", "league", t.Metadata.League)
	return nil
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"matchqueue/fixtures"
	"matchqueue/ledger"
	"matchqueue/model"
)

type Source interface {
	Upcoming(ctx context.Context, from, to time.Time, leagues []int) ([]model.FixtureRef, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, env model.Envelope) error
}

type Options struct {
	Days      int
	Leagues   []int
	FanOut    []model.TaskType
	LedgerTTL time.Duration
	Now       func() time.Time
}

// Scanner discovers fixtures in a rolling window and queues work for the
// ones it has not seen before. Each call to Scan is one independent cycle.
type Scanner struct {
	source Source
	ledger *ledger.Ledger
	queue  Enqueuer
	opts   Options
}

type Result struct {
	From      time.Time
	To        time.Time
	Fetched   int
	Queued    int
	Skipped   int
	Failed    int
	Envelopes int
}

func New(src Source, l *ledger.Ledger, q Enqueuer, opts Options) (*Scanner, error) {
	if opts.Days <= 0 {
		opts.Days = 2
	}
	if opts.Leagues == nil {
		opts.Leagues = fixtures.TrackedLeagues
	}
	if opts.FanOut == nil {
		opts.FanOut = model.DefaultFanOut
	}
	if opts.LedgerTTL <= 0 {
		opts.LedgerTTL = ledger.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for _, typ := range opts.FanOut {
		if _, err := model.NewTask(typ, model.Target{}); err != nil {
			return nil, fmt.Errorf("invalid fan-out: %w", err)
		}
	}
	return &Scanner{source: src, ledger: l, queue: q, opts: opts}, nil
}

// Scan runs one cycle. A provider failure aborts before the ledger is
// touched. Per-fixture store failures leave that fixture unmarked so the
// next cycle picks it up again, and are reported in the returned error.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var res Result
	res.From, res.To = fixtures.Window(s.opts.Now(), s.opts.Days)

	refs, err := s.source.Upcoming(ctx, res.From, res.To, s.opts.Leagues)
	if err != nil {
		return res, fmt.Errorf("fetching fixtures: %w", err)
	}
	res.Fetched = len(refs)

	var errs []error
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := s.queueFixture(ctx, ref)
		switch {
		case err != nil:
			res.Failed++
			errs = append(errs, err)
			slog.ErrorContext(ctx, "error queuing fixture", "match_id", ref.FixtureID, "error", err)
		case n == 0:
			res.Skipped++
		default:
			res.Queued++
			res.Envelopes += n
			slog.InfoContext(ctx, "queued fixture",
				"match_id", ref.FixtureID,
				"league", ref.LeagueName,
				"home", ref.HomeTeam,
				"away", ref.AwayTeam,
			)
		}
	}

	if err := s.ledger.RefreshTTL(ctx, s.opts.LedgerTTL); err != nil {
		errs = append(errs, err)
	}

	slog.InfoContext(ctx, "scan finished",
		"from", res.From.Format(time.DateOnly),
		"to", res.To.Format(time.DateOnly),
		"fetched", res.Fetched,
		"queued", res.Queued,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	if len(errs) > 0 {
		return res, fmt.Errorf("scan finished with %d failures: %w", len(errs), errors.Join(errs...))
	}
	return res, nil
}

// queueFixture returns the number of envelopes pushed, 0 for a fixture that
// is already in the ledger.
func (s *Scanner) queueFixture(ctx context.Context, ref model.FixtureRef) (int, error) {
	isNew, err := s.ledger.IsNew(ctx, ref.FixtureID)
	if err != nil {
		return 0, err
	}
	if !isNew {
		return 0, nil
	}

	envs, err := model.FanOut(ref, s.opts.FanOut)
	if err != nil {
		return 0, err
	}
	for _, env := range envs {
		if err := s.queue.Enqueue(ctx, env); err != nil {
			return 0, fmt.Errorf("enqueuing %s for match %d: %w", env.Task.Type(), ref.FixtureID, err)
		}
	}
	if err := s.ledger.MarkSeen(ctx, ref.FixtureID); err != nil {
		return 0, err
	}
	return len(envs), nil
}

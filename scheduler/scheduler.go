// Package scheduler drives the scanner. Scans run on a cron schedule and
// whenever a scan command arrives on the control channel. Only one scan runs
// at a time; triggers that arrive while one is pending are coalesced.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"matchqueue/control"
	"matchqueue/model"
	"matchqueue/scanner"
)

type Scanner interface {
	Scan(ctx context.Context) (scanner.Result, error)
}

type Receiver interface {
	Receive(ctx context.Context, timeout time.Duration) (*model.Command, error)
}

type Options struct {
	// PollTimeout bounds each wait on the control channel.
	PollTimeout time.Duration
	// RetryDelay is the pause after the control channel fails.
	RetryDelay time.Duration
	// ScanOnStart queues one scan as soon as Run begins.
	ScanOnStart bool
}

type Scheduler struct {
	scanner  Scanner
	commands Receiver
	schedule cron.Schedule
	trigger  chan string
	opts     Options
}

// ParseSchedule accepts a five field cron expression or a descriptor such as
// "@hourly" or "@every 10m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return nil, errors.New("empty cron expression")
	}
	if strings.HasPrefix(e, "@") {
		return cron.ParseStandard(e)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(e)
}

// New builds a scheduler. A nil commands receiver disables the control
// channel; an empty schedule disables timed scans.
func New(s Scanner, commands Receiver, schedule string, opts Options) (*Scheduler, error) {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	sch := &Scheduler{
		scanner:  s,
		commands: commands,
		trigger:  make(chan string, 1),
		opts:     opts,
	}
	if schedule != "" {
		parsed, err := ParseSchedule(schedule)
		if err != nil {
			return nil, fmt.Errorf("parsing scan schedule %q: %w", schedule, err)
		}
		sch.schedule = parsed
	}
	return sch, nil
}

// Trigger asks for a scan. It never blocks.
func (s *Scheduler) Trigger(ctx context.Context, reason string) {
	select {
	case s.trigger <- reason:
	default:
		slog.DebugContext(ctx, "scan already pending, trigger coalesced", "reason", reason)
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.schedule != nil {
		c := cron.New()
		c.Schedule(s.schedule, cron.FuncJob(func() { s.Trigger(ctx, "schedule") }))
		c.Start()
		defer func() {
			<-c.Stop().Done()
		}()
		slog.InfoContext(ctx, "scan schedule active", "next", s.schedule.Next(time.Now()).UTC().Format(time.RFC3339))
	}
	if s.opts.ScanOnStart {
		s.Trigger(ctx, "startup")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.scanLoop(ctx)
		return nil
	})
	if s.commands != nil {
		g.Go(func() error {
			s.commandLoop(ctx)
			return nil
		})
	}
	err := g.Wait()
	slog.InfoContext(ctx, "scheduler stopped")
	return err
}

func (s *Scheduler) scanLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-s.trigger:
			slog.InfoContext(ctx, "starting fixture scan", "reason", reason)
			res, err := s.scanner.Scan(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "fixture scan failed", "reason", reason, "queued", res.Queued, "error", err)
				continue
			}
			slog.InfoContext(ctx, "fixture scan complete", "reason", reason, "queued", res.Queued, "skipped", res.Skipped)
		}
	}
}

func (s *Scheduler) commandLoop(ctx context.Context) {
	for ctx.Err() == nil {
		cmd, err := s.commands.Receive(ctx, s.opts.PollTimeout)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, control.ErrMalformedCommand):
			slog.WarnContext(ctx, "dropping malformed command", "error", err)
		case err != nil:
			slog.ErrorContext(ctx, "control channel error, backing off", "error", err, "delay", s.opts.RetryDelay)
			sleep(ctx, s.opts.RetryDelay)
		case cmd == nil:
		case cmd.Command == model.CommandScanFixtures:
			slog.InfoContext(ctx, "scan requested", "requested_at", cmd.Time().Format(time.RFC3339))
			s.Trigger(ctx, "command")
		default:
			slog.WarnContext(ctx, "unknown command, dropping", "command", cmd.Command)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

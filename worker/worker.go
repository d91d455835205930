package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"matchqueue/deadletter"
	"matchqueue/logging"
	"matchqueue/model"
	"matchqueue/queue"
)

// writeTimeout bounds the requeue and dead-letter writes that follow a failed
// attempt.
const writeTimeout = 10 * time.Second

type Options struct {
	// PopTimeout bounds each blocking pop so the loop notices cancellation.
	PopTimeout time.Duration
	// HeartbeatInterval is the minimum gap between queue depth reports.
	HeartbeatInterval time.Duration
	// RetryDelay is the pause after a store failure.
	RetryDelay  time.Duration
	DeadLetters deadletter.Sink
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PopTimeout <= 0 {
		o.PopTimeout = 5 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Minute
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Worker pops one envelope at a time and dispatches it to its handler.
// Failed envelopes go back on the queue until their retry budget is spent.
type Worker struct {
	queue    *queue.Queue
	handlers model.Handlers
	opts     Options
	lastBeat time.Time
}

func New(q *queue.Queue, h model.Handlers, opts Options) *Worker {
	return &Worker{queue: q, handlers: h, opts: opts.withDefaults()}
}

type outcome int

const (
	outcomeIdle outcome = iota
	outcomeProcessed
	outcomeRequeued
	outcomeDeadLettered
	outcomeDropped
	outcomeStoreError
)

// Run loops until ctx is cancelled. It refuses to start when the store does
// not answer.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.Ping(ctx); err != nil {
		return fmt.Errorf("worker cannot start: %w", err)
	}
	slog.InfoContext(ctx, "worker started, waiting for tasks", "queue", w.queue.Key())
	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "worker shutting down")
			return nil
		}
		w.step(ctx)
		w.heartbeat(ctx)
	}
}

func (w *Worker) step(ctx context.Context) outcome {
	env, err := w.queue.Dequeue(ctx, w.opts.PopTimeout)
	if err != nil {
		var unknown *model.UnknownTaskError
		var decodeErr *queue.DecodeError
		switch {
		case ctx.Err() != nil:
			return outcomeIdle
		case errors.As(err, &unknown):
			slog.WarnContext(ctx, "unknown task type, dropping", "task_type", unknown.Type, "match_id", unknown.FixtureID)
			return outcomeDropped
		case errors.As(err, &decodeErr):
			slog.ErrorContext(ctx, "invalid envelope, dropping", "payload", decodeErr.Raw, "error", decodeErr.Err)
			return outcomeDropped
		default:
			slog.ErrorContext(ctx, "dequeue error, backing off", "error", err, "delay", w.opts.RetryDelay)
			sleep(ctx, w.opts.RetryDelay)
			return outcomeStoreError
		}
	}
	if env == nil {
		return outcomeIdle
	}
	return w.process(ctx, *env)
}

func (w *Worker) process(ctx context.Context, env model.Envelope) outcome {
	target := env.Task.Fixture()
	ctx = logging.ContextAttrs(ctx,
		slog.String("task_type", string(env.Task.Type())),
		slog.Int64("match_id", target.FixtureID),
		slog.Int("retry_count", env.RetryCount),
	)
	slog.InfoContext(ctx, "processing task")

	err := w.dispatch(ctx, env)
	if err == nil {
		slog.InfoContext(ctx, "task processed")
		return outcomeProcessed
	}

	// Follow-up writes run detached so a shutdown cannot drop the envelope.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if ctx.Err() != nil {
		// Interrupted attempts are not charged against the retry budget.
		if qerr := w.queue.Enqueue(wctx, env); qerr != nil {
			slog.ErrorContext(ctx, "failed to requeue interrupted task", "error", qerr, "cause", err)
			w.deadLetter(wctx, env, fmt.Errorf("requeue failed: %w (after %w)", qerr, err))
			return outcomeStoreError
		}
		slog.WarnContext(ctx, "task interrupted by shutdown, requeued", "error", err)
		return outcomeRequeued
	}

	if !env.Exhausted() {
		next := env.Retry()
		if qerr := w.queue.Enqueue(wctx, next); qerr != nil {
			slog.ErrorContext(ctx, "failed to requeue task", "error", qerr, "cause", err)
			w.deadLetter(wctx, env, fmt.Errorf("requeue failed: %w (after %w)", qerr, err))
			return outcomeStoreError
		}
		slog.WarnContext(ctx, "task failed, requeued", "error", err, "attempt", next.RetryCount, "max_retries", model.MaxRetries)
		return outcomeRequeued
	}

	slog.ErrorContext(ctx, "task failed permanently", "error", err, "attempts", env.RetryCount+1)
	w.deadLetter(wctx, env, err)
	return outcomeDeadLettered
}

// dispatch runs the handler for env, turning a panic into a handler failure.
func (w *Worker) dispatch(ctx context.Context, env model.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return env.Task.Dispatch(ctx, w.handlers)
}

func (w *Worker) deadLetter(ctx context.Context, env model.Envelope, reason error) {
	if w.opts.DeadLetters == nil {
		return
	}
	if err := w.opts.DeadLetters.Record(ctx, deadletter.NewLetter(env, reason, w.opts.Now())); err != nil {
		slog.ErrorContext(ctx, "failed to record dead letter", "error", err)
	}
}

func (w *Worker) heartbeat(ctx context.Context) {
	now := w.opts.Now()
	if now.Sub(w.lastBeat) < w.opts.HeartbeatInterval {
		return
	}
	w.lastBeat = now
	n, err := w.queue.Len(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "heartbeat could not read queue size", "error", err)
		}
		return
	}
	slog.InfoContext(ctx, "worker heartbeat", "queue_size", n)
}

// Start runs count independent worker loops until ctx is cancelled. It
// returns the first startup error.
func Start(ctx context.Context, count int, q *queue.Queue, h model.Handlers, opts Options) error {
	instance := uuid.NewString()
	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= count; i++ {
		wctx := logging.ContextAttrs(ctx, slog.Group("worker",
			slog.Int("id", i),
			slog.String("instance", instance),
		))
		w := New(q, h, opts)
		g.Go(func() error {
			return w.Run(wctx)
		})
	}
	err := g.Wait()
	slog.InfoContext(ctx, "all workers stopped")
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

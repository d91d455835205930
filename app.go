package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"matchqueue/api"
	"matchqueue/cache"
	"matchqueue/config"
	"matchqueue/control"
	"matchqueue/deadletter"
	"matchqueue/fixtures"
	"matchqueue/ledger"
	"matchqueue/provider"
	"matchqueue/queue"
	"matchqueue/scanner"
	"matchqueue/scheduler"
	"matchqueue/store"
	"matchqueue/tasks"
	"matchqueue/worker"
)

// app holds the shared dependencies every command builds on.
type app struct {
	cfg         config.Config
	redis       *store.Redis
	fixtures    *fixtures.Service
	queue       *queue.Queue
	ledger      *ledger.Ledger
	control     *control.Channel
	deadLetters deadletter.Sink
	postgres    *deadletter.Postgres
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	rdb, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	st := store.WithRetry(rdb, cfg.StoreRetryDelay, cfg.StoreRetryAttempts)

	client, err := provider.NewClient(cfg.APIFootballURL, cfg.APIFootballKey, cfg.ProviderTimeout)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	client.WithRateLimit(cfg.ProviderRateLimit)
	if cfg.APIFootballKey == "" {
		slog.WarnContext(ctx, "API_FOOTBALL_KEY is not set, provider requests will fail")
	}

	a := &app{
		cfg:      cfg,
		redis:    rdb,
		fixtures: fixtures.NewService(cache.New(st), client),
		queue:    queue.New(st, ""),
		ledger:   ledger.New(st, ""),
		control:  control.New(st, ""),
	}

	if cfg.DatabaseURL != "" {
		pg, err := deadletter.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize dead letter database: %w", err)
		}
		a.postgres = pg
		a.deadLetters = pg
	} else {
		a.deadLetters = deadletter.NewStoreSink(st, "")
	}
	return a, nil
}

func (a *app) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if err := a.redis.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}

func (a *app) scanner(days int) (*scanner.Scanner, error) {
	if days <= 0 {
		days = a.cfg.ScanDays
	}
	return scanner.New(a.fixtures, a.ledger, a.queue, scanner.Options{Days: days})
}

func (a *app) runWorkers(ctx context.Context, count int) error {
	if count <= 0 {
		count = a.cfg.WorkerCount
	}
	return worker.Start(ctx, count, a.queue, tasks.New(a.fixtures), worker.Options{
		PopTimeout:        a.cfg.PopTimeout,
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		RetryDelay:        a.cfg.StoreRetryDelay,
		DeadLetters:       a.deadLetters,
	})
}

func (a *app) runScheduler(ctx context.Context, scanOnStart bool) error {
	sc, err := a.scanner(0)
	if err != nil {
		return err
	}
	sch, err := scheduler.New(sc, a.control, a.cfg.ScanSchedule, scheduler.Options{
		PollTimeout: a.cfg.PopTimeout,
		RetryDelay:  a.cfg.StoreRetryDelay,
		ScanOnStart: scanOnStart,
	})
	if err != nil {
		return err
	}
	return sch.Run(ctx)
}

func (a *app) runServer(ctx context.Context) error {
	checks := map[string]api.Pinger{"store": a.redis}
	if a.postgres != nil {
		checks["dead_letters"] = a.postgres
	}
	server := api.NewServer(a.cfg.ServerAddr, api.Deps{
		Fixtures:    a.fixtures,
		Commands:    a.control,
		Queue:       a.queue,
		DeadLetters: a.deadLetters,
		Checks:      checks,
		Version:     version,
		Environment: a.cfg.Environment,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "starting server", "addr", a.cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "HTTP server shutdown error", "error", err)
	}
	return <-errCh
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func doScan(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sc, err := a.scanner(flagDays)
		if err != nil {
			return err
		}
		res, err := sc.Scan(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %d new fixtures (%d envelopes), %d already seen\n", res.Queued, res.Envelopes, res.Skipped)
		return nil
	})
}

func doWorker(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.runWorkers(ctx, flagWorkers)
	})
}

func doScheduler(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return a.runScheduler(ctx, flagScanOnStart)
	})
}

func doServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.runServer(ctx) })
		if flagWithWorkers {
			g.Go(func() error { return a.runWorkers(ctx, 0) })
		}
		if flagWithScheduler {
			g.Go(func() error { return a.runScheduler(ctx, false) })
		}
		return g.Wait()
	})
}

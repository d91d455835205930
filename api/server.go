package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"matchqueue/deadletter"
	"matchqueue/fixtures"
	"matchqueue/model"
	"matchqueue/provider"
)

const (
	maxDays          = 14
	defaultDeadLimit = 20
	maxDeadLimit     = 100
)

type Fixtures interface {
	Upcoming(ctx context.Context, from, to time.Time, leagues []int) ([]model.FixtureRef, error)
	Detail(ctx context.Context, id int64) (provider.Fixture, error)
}

type Commands interface {
	Send(ctx context.Context, name string) (model.Command, error)
}

type Queue interface {
	Key() string
	Len(ctx context.Context) (int64, error)
	Remove(ctx context.Context, fixtureID int64) (int, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Fixtures    Fixtures
	Commands    Commands
	Queue       Queue
	DeadLetters deadletter.Sink
	// Checks are pinged by the health route, keyed by component name.
	Checks      map[string]Pinger
	Version     string
	Environment string
	Now         func() time.Time
}

type Server struct {
	deps Deps
}

func NewServer(addr string, deps Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	srv := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fixtures", srv.getFixtures)
	mux.HandleFunc("GET /fixtures/{id}", srv.getFixture)
	mux.HandleFunc("POST /fixtures/trigger-scan", srv.triggerScan)
	mux.HandleFunc("DELETE /fixtures/{id}/tasks", srv.cancelFixtureTasks)
	mux.HandleFunc("GET /queue", srv.getQueue)
	mux.HandleFunc("GET /dead-letters", srv.getDeadLetters)
	mux.HandleFunc("GET /health", srv.health)
	mux.HandleFunc("GET /version", srv.version)
	return mux
}

func (s *Server) getFixtures(w http.ResponseWriter, r *http.Request) {
	days := 2
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxDays {
			http.Error(w, "[API] Invalid days value", http.StatusBadRequest)
			return
		}
		days = n
	}
	leagues := parseLeagues(r.URL.Query().Get("league_ids"))

	from, to := fixtures.Window(s.deps.Now(), days)
	refs, err := s.deps.Fixtures.Upcoming(r.Context(), from, to, leagues)
	if err != nil {
		slog.ErrorContext(r.Context(), "error getting fixtures", "error", err)
		http.Error(w, "[API] Failed to fetch fixtures", upstreamStatus(err))
		return
	}
	if refs == nil {
		refs = []model.FixtureRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) getFixture(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "[API] Invalid fixture ID", http.StatusBadRequest)
		return
	}

	f, err := s.deps.Fixtures.Detail(r.Context(), id)
	if errors.Is(err, provider.ErrNotFound) {
		http.Error(w, "[API] Fixture not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "error getting fixture", "match_id", id, "error", err)
		http.Error(w, "[API] Failed to fetch fixture", upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) triggerScan(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.deps.Commands.Send(r.Context(), model.CommandScanFixtures)
	if err != nil {
		slog.ErrorContext(r.Context(), "error triggering scan", "error", err)
		http.Error(w, "[API] Store connection not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "scan triggered",
		"timestamp": cmd.Timestamp,
	})
}

func (s *Server) cancelFixtureTasks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "[API] Invalid fixture ID", http.StatusBadRequest)
		return
	}

	n, err := s.deps.Queue.Remove(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "error removing queued tasks", "match_id", id, "error", err)
		http.Error(w, "[API] Failed to remove from queue", http.StatusServiceUnavailable)
		return
	}
	if n == 0 {
		http.Error(w, "[API] No queued tasks for fixture", http.StatusNotFound)
		return
	}
	slog.InfoContext(r.Context(), "removed queued tasks", "match_id", id, "removed", n)
	writeJSON(w, http.StatusOK, map[string]any{"match_id": id, "removed": n})
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Queue.Len(r.Context())
	if err != nil {
		http.Error(w, "[API] Store connection not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": s.deps.Queue.Key(), "size": n})
}

func (s *Server) getDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeadLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDeadLimit {
			http.Error(w, "[API] Invalid limit value", http.StatusBadRequest)
			return
		}
		limit = n
	}

	letters, err := s.deps.DeadLetters.List(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "error listing dead letters", "error", err)
		http.Error(w, "[API] Failed to list dead letters", http.StatusServiceUnavailable)
		return
	}
	if letters == nil {
		letters = []deadletter.Letter{}
	}
	writeJSON(w, http.StatusOK, letters)
}

// health always answers 200 so a flaky dependency does not get the API
// process restarted; the body reports which checks failed.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(s.deps.Checks))
	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			status = "degraded"
			checks[name] = "error: " + err.Error()
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"environment": s.deps.Environment,
		"checks":      checks,
	})
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":     s.deps.Version,
		"environment": s.deps.Environment,
	})
}

// parseLeagues keeps the numeric entries of a comma separated list and falls
// back to the tracked leagues when none remain.
func parseLeagues(raw string) []int {
	var leagues []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			continue
		}
		leagues = append(leagues, id)
	}
	if len(leagues) == 0 {
		return fixtures.TrackedLeagues
	}
	return leagues
}

func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, provider.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrPermanent):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

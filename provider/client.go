package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultTimeout = 30 * time.Second

// Client talks to the API-Football v3 REST API.
type Client struct {
	baseURL string
	host    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid provider url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    u.Host,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithRateLimit spaces requests so at most perMinute are sent per minute.
// Callers block until their turn or until their context ends.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return c
}

type envelope struct {
	Errors   json.RawMessage   `json:"errors"`
	Results  int               `json:"results"`
	Response []json.RawMessage `json:"response"`
}

// Fixtures lists the fixtures played between from and to (inclusive dates)
// in the given leagues. An empty league list means all leagues.
func (c *Client) Fixtures(ctx context.Context, from, to time.Time, leagues []int) ([]Fixture, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	if len(leagues) > 0 {
		ids := make([]string, len(leagues))
		for i, id := range leagues {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("league", strings.Join(ids, ","))
	}
	slog.InfoContext(ctx, "fetching fixtures", "from", q.Get("from"), "to", q.Get("to"))
	fixtures, err := c.get(ctx, "fixtures", q)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "fetched fixtures", "count", len(fixtures))
	return fixtures, nil
}

// Fixture returns the details of one fixture, or ErrNotFound.
func (c *Client) Fixture(ctx context.Context, id int64) (Fixture, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(id, 10))
	fixtures, err := c.get(ctx, "fixture", q)
	if err != nil {
		return Fixture{}, err
	}
	if len(fixtures) == 0 {
		return Fixture{}, fmt.Errorf("fixture %d: %w", id, ErrNotFound)
	}
	return fixtures[0], nil
}

func (c *Client) get(ctx context.Context, op string, q url.Values) ([]Fixture, error) {
	if c.apiKey == "" {
		return nil, permanent(op, 0, errors.New("API_FOOTBALL_KEY is not set"))
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transient(op, 0, fmt.Errorf("waiting for rate limit: %w", err))
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fixtures?"+q.Encode(), nil)
	if err != nil {
		return nil, permanent(op, 0, err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transient(op, 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, transient(op, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		slog.ErrorContext(ctx, "provider request failed", "op", op, "status", resp.StatusCode, "body", truncate(body))
		return nil, transient(op, resp.StatusCode, nil)
	case resp.StatusCode != http.StatusOK:
		slog.ErrorContext(ctx, "provider request failed", "op", op, "status", resp.StatusCode, "body", truncate(body))
		return nil, permanent(op, resp.StatusCode, nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, permanent(op, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	if msg, rateLimited := providerErrors(env.Errors); msg != "" {
		slog.ErrorContext(ctx, "provider returned errors", "op", op, "errors", msg)
		if rateLimited {
			return nil, transient(op, resp.StatusCode, errors.New(msg))
		}
		return nil, permanent(op, resp.StatusCode, errors.New(msg))
	}
	if env.Response == nil {
		return nil, permanent(op, resp.StatusCode, errors.New("unexpected response format"))
	}
	// One malformed element costs that fixture, not the whole response.
	fixtures := make([]Fixture, 0, len(env.Response))
	for i, raw := range env.Response {
		var f Fixture
		if err := json.Unmarshal(raw, &f); err != nil {
			slog.WarnContext(ctx, "skipping undecodable fixture", "op", op, "index", i, "error", err)
			continue
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

// providerErrors flattens the "errors" member, which the API sends as an
// empty array on success and as an object or array of messages on failure.
func providerErrors(raw json.RawMessage) (msg string, rateLimited bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "[]" || string(raw) == "{}" {
		return "", false
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err == nil {
		parts := make([]string, 0, len(byKey))
		for k, v := range byKey {
			parts = append(parts, k+": "+v)
			if k == "rateLimit" || k == "requests" {
				rateLimited = true
			}
		}
		sort.Strings(parts)
		return strings.Join(parts, "; "), rateLimited
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; "), false
	}
	return string(raw), false
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

package deadletter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id          BIGSERIAL PRIMARY KEY,
	task_type   TEXT        NOT NULL,
	match_id    BIGINT      NOT NULL,
	payload     JSONB,
	retry_count INTEGER     NOT NULL,
	reason      TEXT        NOT NULL DEFAULT '',
	failed_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and creates the dead_letters table if
// it does not exist.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating dead_letters table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Record(ctx context.Context, l Letter) error {
	var payload any
	if len(l.Payload) > 0 {
		payload = string(l.Payload)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO dead_letters (task_type, match_id, payload, retry_count, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.TaskType, l.MatchID, payload, l.RetryCount, l.Reason, l.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Letter, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, task_type, match_id, payload, retry_count, reason, failed_at
		FROM dead_letters ORDER BY failed_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	letters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Letter, error) {
		var l Letter
		var payload []byte
		err := row.Scan(&l.ID, &l.TaskType, &l.MatchID, &payload, &l.RetryCount, &l.Reason, &l.FailedAt)
		l.Payload = payload
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning dead letters: %w", err)
	}
	return letters, nil
}

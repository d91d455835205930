// Package deadletter keeps envelopes that exhausted their retry budget so an
// operator can inspect them later.
package deadletter

import (
	"context"
	"encoding/json"
	"time"

	"matchqueue/model"
)

type Letter struct {
	ID         int64           `json:"id,omitempty"`
	TaskType   string          `json:"task_type"`
	MatchID    int64           `json:"match_id"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	Reason     string          `json:"reason"`
	FailedAt   time.Time       `json:"failed_at"`
}

type Sink interface {
	Record(ctx context.Context, l Letter) error
	// List returns up to limit letters, newest first.
	List(ctx context.Context, limit int) ([]Letter, error)
}

func NewLetter(env model.Envelope, reason error, at time.Time) Letter {
	payload, err := json.Marshal(env)
	if err != nil {
		payload = nil
	}
	l := Letter{
		TaskType:   string(env.Task.Type()),
		MatchID:    env.Task.Fixture().FixtureID,
		Payload:    payload,
		RetryCount: env.RetryCount,
		FailedAt:   at.UTC(),
	}
	if reason != nil {
		l.Reason = reason.Error()
	}
	return l
}

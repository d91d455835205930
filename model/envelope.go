package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// MaxRetries is how many times a failed envelope is requeued before it is
// dropped.
const MaxRetries = 3

// Envelope is one unit of work on the task queue.
type Envelope struct {
	Task       Task
	RetryCount int
}

func NewEnvelope(task Task) Envelope {
	return Envelope{Task: task}
}

// FanOut builds one envelope per task type for a fixture.
func FanOut(f FixtureRef, types []TaskType) ([]Envelope, error) {
	target := Target{FixtureID: f.FixtureID, Metadata: f.Metadata()}
	envs := make([]Envelope, 0, len(types))
	for _, typ := range types {
		task, err := NewTask(typ, target)
		if err != nil {
			return nil, err
		}
		envs = append(envs, NewEnvelope(task))
	}
	return envs, nil
}

// Exhausted reports whether the envelope has used up its retry budget.
func (e Envelope) Exhausted() bool {
	return e.RetryCount >= MaxRetries
}

// Retry returns a copy of e with the retry counter bumped.
func (e Envelope) Retry() Envelope {
	e.RetryCount++
	return e
}

type wireEnvelope struct {
	Type       string   `json:"type"`
	MatchID    *int64   `json:"match_id"`
	Metadata   Metadata `json:"metadata"`
	RetryCount int      `json:"retry_count,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Task == nil {
		return nil, fmt.Errorf("%w: no task", ErrMalformedEnvelope)
	}
	target := e.Task.Fixture()
	return json.Marshal(wireEnvelope{
		Type:       string(e.Task.Type()),
		MatchID:    &target.FixtureID,
		Metadata:   target.Metadata,
		RetryCount: e.RetryCount,
	})
}

// UnmarshalJSON decodes the queue wire format. Undecodable payloads wrap
// ErrMalformedEnvelope; well-formed payloads with an unknown type return an
// *UnknownTaskError.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if w.MatchID == nil {
		return fmt.Errorf("%w: missing match_id", ErrMalformedEnvelope)
	}
	if w.RetryCount < 0 {
		return fmt.Errorf("%w: negative retry_count", ErrMalformedEnvelope)
	}
	task, err := NewTask(TaskType(w.Type), Target{FixtureID: *w.MatchID, Metadata: w.Metadata})
	if err != nil {
		return err
	}
	e.Task = task
	e.RetryCount = w.RetryCount
	return nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := e.UnmarshalJSON(data); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

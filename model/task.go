package model

import (
	"context"
	"fmt"
)

type TaskType string

const (
	TypeFetchExtendedData  TaskType = "fetch_extended_data"
	TypeScrapeNews         TaskType = "scrape_news"
	TypeGeneratePrediction TaskType = "generate_prediction"

	// typeFetchRestData is what older scanners wrote for TypeFetchExtendedData.
	typeFetchRestData TaskType = "fetch_rest_data"
)

// DefaultFanOut is the set of tasks queued for every newly discovered fixture.
// Predictions are dispatched by a separate producer.
var DefaultFanOut = []TaskType{TypeFetchExtendedData, TypeScrapeNews}

// Target is the fixture a task operates on.
type Target struct {
	FixtureID int64
	Metadata  Metadata
}

// Handlers has one method per task variant. Adding a variant means adding a
// method here, so every handler set must be updated before the build passes.
type Handlers interface {
	FetchExtendedData(ctx context.Context, t FetchExtendedData) error
	ScrapeNews(ctx context.Context, t ScrapeNews) error
	GeneratePrediction(ctx context.Context, t GeneratePrediction) error
}

// Task is a closed union: only the variants in this package implement it.
type Task interface {
	Type() TaskType
	Fixture() Target
	Dispatch(ctx context.Context, h Handlers) error
	isTask()
}

type FetchExtendedData struct{ Target }

type ScrapeNews struct{ Target }

type GeneratePrediction struct{ Target }

func (t FetchExtendedData) Type() TaskType  { return TypeFetchExtendedData }
func (t ScrapeNews) Type() TaskType         { return TypeScrapeNews }
func (t GeneratePrediction) Type() TaskType { return TypeGeneratePrediction }

func (t FetchExtendedData) Fixture() Target  { return t.Target }
func (t ScrapeNews) Fixture() Target         { return t.Target }
func (t GeneratePrediction) Fixture() Target { return t.Target }

func (t FetchExtendedData) Dispatch(ctx context.Context, h Handlers) error {
	return h.FetchExtendedData(ctx, t)
}

func (t ScrapeNews) Dispatch(ctx context.Context, h Handlers) error {
	return h.ScrapeNews(ctx, t)
}

func (t GeneratePrediction) Dispatch(ctx context.Context, h Handlers) error {
	return h.GeneratePrediction(ctx, t)
}

func (FetchExtendedData) isTask()  {}
func (ScrapeNews) isTask()         {}
func (GeneratePrediction) isTask() {}

// NewTask builds the variant for typ. It returns an *UnknownTaskError for
// types outside the union.
func NewTask(typ TaskType, target Target) (Task, error) {
	switch typ {
	case TypeFetchExtendedData, typeFetchRestData:
		return FetchExtendedData{target}, nil
	case TypeScrapeNews:
		return ScrapeNews{target}, nil
	case TypeGeneratePrediction:
		return GeneratePrediction{target}, nil
	default:
		return nil, &UnknownTaskError{Type: string(typ), FixtureID: target.FixtureID}
	}
}

// UnknownTaskError is a permanent rejection of an envelope whose type no
// handler exists for.
type UnknownTaskError struct {
	Type      string
	FixtureID int64
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task type %q for match %d", e.Type, e.FixtureID)
}

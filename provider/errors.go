package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient covers network failures, timeouts, 5xx and rate limiting.
	// The caller retries on its next scheduled run.
	ErrTransient = errors.New("transient fetch failure")
	// ErrPermanent covers rejected requests and unusable payloads.
	ErrPermanent = errors.New("permanent fetch failure")
	ErrNotFound  = errors.New("fixture not found")
)

type FetchError struct {
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func transient(op string, status int, err error) error {
	return &FetchError{Op: op, StatusCode: status, Kind: ErrTransient, Err: err}
}

func permanent(op string, status int, err error) error {
	return &FetchError{Op: op, StatusCode: status, Kind: ErrPermanent, Err: err}
}

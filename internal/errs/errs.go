// Package errs defines the pipeline error taxonomy. Each failure carries a Kind that decides
// whether the event is dead-lettered, degraded or recovered locally.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindValidation is a malformed event; it never enters the pipeline.
	KindValidation Kind = "validation"
	// KindPersistence is a database failure during resolution, ticket creation or message storage.
	KindPersistence Kind = "persistence"
	// KindGeneration is a generative backend failure or timeout; always recovered by the fallback policy.
	KindGeneration Kind = "generation"
	// KindDelivery is a dispatch failure; recorded but never fails the event.
	KindDelivery Kind = "delivery"
	// KindBus is a publish or consume failure at the event bus.
	KindBus Kind = "bus"
)

// Error is a classified failure. Op names the operation that failed (e.g. "resolver.resolve").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// E wraps err with kind and op. Returns nil when err is nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error  { return E(KindValidation, op, err) }
func Persistence(op string, err error) error { return E(KindPersistence, op, err) }
func Generation(op string, err error) error  { return E(KindGeneration, op, err) }
func Delivery(op string, err error) error    { return E(KindDelivery, op, err) }
func Bus(op string, err error) error         { return E(KindBus, op, err) }

// KindOf returns the Kind of the outermost classified error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

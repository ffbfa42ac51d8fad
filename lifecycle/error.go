// Package lifecycle defines the error coproduct that separates an
// executor's or lane's lifecycle conditions (shutdown, cancellation,
// timeout) from the domain errors produced by user-supplied work, at the
// type level.
//
// No domain error type used with Error[E] should itself represent shutdown,
// cancellation, or timeout; those are only representable as the coproduct's
// own cases. Composition is by wrapping a domain error, never by the
// domain type adding its own shutdown/cancelled/timeout case.
package lifecycle

import "fmt"

// Kind identifies which case of the Error[E] coproduct is populated.
type Kind int

const (
	// KindFailure wraps a domain error produced by user-supplied work.
	KindFailure Kind = iota
	// KindShutdownInProgress indicates the owning executor or lane has
	// begun shutting down and the operation was rejected or drained.
	KindShutdownInProgress
	// KindCancelled indicates the ambient caller was cancelled before a
	// domain outcome was produced. Note: within the blocking lane's own
	// Pattern A contract (see package lane), cancellation is instead
	// surfaced as a structural Result, not as this Kind. KindCancelled is
	// for consumers that have no Result type of their own to carry a
	// "cancelled" outcome in; no package in this module constructs it.
	KindCancelled
	// KindTimeout indicates an externally attributed deadline elapsed,
	// distinguished from a lane-internal deadlineExceeded domain error
	// when the caller wishes to attribute the timeout to its own ambient
	// deadline rather than one passed to the lane.
	KindTimeout
)

// String returns the human-readable name of k.
func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "failure"
	case KindShutdownInProgress:
		return "shutdownInProgress"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is the lifecycle error coproduct LifecycleError<E> from the
// specification: shutdownInProgress | cancelled | timeout | failure(E).
//
// The zero value is not valid; construct with Failure, ShutdownInProgress,
// Cancelled, or Timeout.
type Error[E error] struct {
	kind   Kind
	domain E
}

// Failure wraps a domain error produced by user-supplied work.
func Failure[E error](err E) Error[E] {
	return Error[E]{kind: KindFailure, domain: err}
}

// ShutdownInProgress constructs the shutdownInProgress case.
func ShutdownInProgress[E error]() Error[E] {
	return Error[E]{kind: KindShutdownInProgress}
}

// Cancelled constructs the cancelled case.
func Cancelled[E error]() Error[E] {
	return Error[E]{kind: KindCancelled}
}

// Timeout constructs the timeout case.
func Timeout[E error]() Error[E] {
	return Error[E]{kind: KindTimeout}
}

// Kind reports which case of the coproduct e holds.
func (e Error[E]) Kind() Kind {
	return e.kind
}

// Domain returns the wrapped domain error and true if e is the failure
// case; otherwise it returns the zero value of E and false.
func (e Error[E]) Domain() (E, bool) {
	if e.kind == KindFailure {
		return e.domain, true
	}
	var zero E
	return zero, false
}

// Error implements the error interface.
func (e Error[E]) Error() string {
	switch e.kind {
	case KindFailure:
		return "lifecycle: " + e.domain.Error()
	default:
		return "lifecycle: " + e.kind.String()
	}
}

// Unwrap returns the wrapped domain error for errors.Is/errors.As, or nil
// for the non-failure cases.
func (e Error[E]) Unwrap() error {
	if e.kind == KindFailure {
		return e.domain
	}
	return nil
}

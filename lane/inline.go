package lane

import (
	"context"

	"github.com/joeycumines/go-iocore/lifecycle"
)

// InlineLane is the synchronous alternative to Lane (spec §4.6.9): it
// runs submitted work directly on the calling goroutine instead of
// dispatching to a pool of dedicated workers. Admission never fails —
// there is no queue to fill and no admission waiters to exhaust — so
// InlineRun's non-success outcomes are Pattern A cancellation (the
// ambient context was already cancelled before the body could run),
// whatever domain error the body itself returns, and two lifecycle errors:
// KindTimeout when the ambient context's deadline has already elapsed,
// and KindShutdownInProgress after Shutdown.
//
// InlineLane exists for call sites that want the lane API's uniform
// Result[T] shape (for example, a caller that sometimes runs against a
// real Lane and sometimes against a stub) without paying for a worker
// thread when the work is already known to run on an acceptable thread.
type InlineLane struct {
	shutdown bool
}

// NewInlineLane constructs a ready-to-use InlineLane. There is nothing to
// start: an InlineLane owns no threads.
func NewInlineLane() *InlineLane {
	return &InlineLane{}
}

// Shutdown marks l as no longer accepting work. It has no threads to stop
// or join; it exists only so InlineLane satisfies the same lifecycle
// shape a caller might expect from Lane.
func (l *InlineLane) Shutdown() {
	l.shutdown = true
}

// InlineRun executes body synchronously on the caller's own goroutine.
//
// Per spec §4.6.9, InlineLane still honors Pattern A: if ctx is already
// cancelled, InlineRun returns OutcomeCancelled without invoking body at
// all, rather than silently running work the caller no longer wants. A
// context that becomes cancelled only after body has already started is
// not observed mid-flight — InlineLane has no run loop to poll it against,
// so the call runs to completion and its real outcome is reported, the
// same way a direct function call would.
func InlineRun[T any](ctx context.Context, l *InlineLane, body func(context.Context) (T, error)) (Result[T], error) {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return Result[T]{}, lifecycle.Timeout[error]()
		}
		return cancelled[T](), nil
	}
	if l.shutdown {
		return Result[T]{}, lifecycle.ShutdownInProgress[error]()
	}

	value, err := body(ctx)
	if err != nil {
		return failure[T](err), nil
	}
	return success(value), nil
}

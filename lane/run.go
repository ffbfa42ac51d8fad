package lane

import (
	"context"
	"time"

	"github.com/joeycumines/go-iocore/lifecycle"
)

// Run submits body for execution on l, blocking the caller until the job
// completes, the ambient ctx is cancelled, ctx's own deadline elapses, or
// deadline (the lane-specific parameter) elapses — whichever comes first
// (spec §4.6, entry points).
//
// Three distinct "the caller never gets body's return value" cases are
// distinguished deliberately (spec §4.7, §9):
//   - ctx cancelled (context.Canceled): delivered as Result.Outcome ==
//     OutcomeCancelled. Per Pattern A this is never an error return, so
//     that a caller-owned resource embedded in T survives the unwind.
//   - ctx's own deadline elapsed (context.DeadlineExceeded): an ambient
//     lifecycle condition, not a domain one, so it bypasses Result
//     entirely and is returned as a lifecycle.Error[error] with
//     KindTimeout.
//   - deadline (the parameter) elapsed: a domain condition local to this
//     call, delivered as Result{Outcome: OutcomeFailure, Err:
//     ErrDeadlineExceeded}.
func Run[T any](ctx context.Context, l *Lane, deadline Deadline, body func(context.Context) (T, error)) (Result[T], error) {
	if l.lifecycle() != stateRunning {
		return Result[T]{}, lifecycle.ShutdownInProgress[error]()
	}
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return Result[T]{}, lifecycle.Timeout[error]()
		}
		return cancelled[T](), nil
	}

	makeJob := func(ticket uint64) func() {
		return func() {
			defer func() {
				if r := recover(); r != nil {
					l.completeTicket(ticket, failure[T](&PanicError{Value: r}))
				}
			}()
			value, err := body(ctx)
			if err != nil {
				l.completeTicket(ticket, failure[T](err))
				return
			}
			l.completeTicket(ticket, success(value))
		}
	}

	ticket, notify, rejectErr := l.admit(ctx, deadline, makeJob)
	if rejectErr != nil {
		switch rejectErr {
		case errAdmitCancelled:
			return cancelled[T](), nil
		case errAdmitCtxDeadline:
			return Result[T]{}, lifecycle.Timeout[error]()
		case admitShutdown:
			return Result[T]{}, lifecycle.ShutdownInProgress[error]()
		case ErrQueueFull, ErrOverloaded:
			l.reportOverload(rejectErr)
			return failure[T](rejectErr), nil
		default:
			return failure[T](rejectErr), nil
		}
	}

	var timerCh <-chan time.Time
	if t := deadline.timer(); t != nil {
		timerCh = t.C
		defer t.Stop()
	}

	select {
	case boxed := <-notify:
		return boxed.(Result[T]), nil

	case <-ctx.Done():
		if boxed, timedOut := l.claimAbandon(ticket, notify); !timedOut {
			return boxed.(Result[T]), nil
		}
		if ctx.Err() == context.DeadlineExceeded {
			return Result[T]{}, lifecycle.Timeout[error]()
		}
		return cancelled[T](), nil

	case <-timerCh:
		if boxed, timedOut := l.claimAbandon(ticket, notify); !timedOut {
			return boxed.(Result[T]), nil
		}
		return failure[T](ErrDeadlineExceeded), nil

	case <-l.shutdownCh:
		if boxed, timedOut := l.claimAbandon(ticket, notify); !timedOut {
			return boxed.(Result[T]), nil
		}
		return Result[T]{}, lifecycle.ShutdownInProgress[error]()
	}
}

// RunImmediate is Run with a deadline of "now": it either runs (or is
// accepted onto the queue) immediately, or fails fast, per spec §9's
// resolution that RunImmediate is equivalent to Run with DeadlineNow().
func RunImmediate[T any](ctx context.Context, l *Lane, body func(context.Context) (T, error)) (Result[T], error) {
	return Run(ctx, l, DeadlineNow(), body)
}

// claimAbandon implements the submitter side of the completion-wins race
// (spec §4.6.6, testable property 3). It is called once a submitter's
// select has woken via cancellation, deadline, or shutdown, instead of via
// notify.
//
// If the ticket is still in the map (still ticketWaiting), the submitter
// wins: it marks the entry abandoned (so a later completeTicket silently
// discards its result) and timedOut is true.
//
// If the ticket is already gone from the map, a worker's completeTicket
// already claimed it and is guaranteed to send to notify (or already has);
// the submitter has lost the race and must take the real completion
// instead of fabricating a cancelled/timed-out outcome, so this blocks on
// notify and returns timedOut = false.
func (l *Lane) claimAbandon(ticket uint64, notify chan any) (boxed any, timedOut bool) {
	l.mu.Lock()
	entry, ok := l.tickets[ticket]
	if ok {
		entry.state = ticketAbandoned
		l.mu.Unlock()
		return nil, true
	}
	l.mu.Unlock()
	return <-notify, false
}

// admit runs the admission algorithm of spec §4.6.3: fast-path onto the
// queue if it has space; otherwise reject immediately if the deadline has
// already passed or the backpressure strategy is FailFast; otherwise
// suspend as an admission waiter until granted a slot, rejected outright
// (waiters list full), cancelled, timed out, or the lane shuts down.
//
// makeJob is a factory rather than a ready closure because, on the
// suspend path, the ticket (and therefore the closure that completes it)
// is not known until a slot is actually granted.
func (l *Lane) admit(ctx context.Context, deadline Deadline, makeJob func(ticket uint64) func()) (uint64, chan any, error) {
	l.mu.Lock()
	if l.lifecycle() != stateRunning {
		l.mu.Unlock()
		return 0, nil, admitShutdown
	}
	if l.queue.HasSpace() {
		ticket := l.nextTicket()
		entry := newTicketEntry()
		l.tickets[ticket] = entry
		l.queue.Push(ticket, makeJob(ticket))
		l.cond.Signal()
		l.mu.Unlock()
		return ticket, entry.notify, nil
	}

	if deadline.isPastOrNow() {
		l.mu.Unlock()
		return 0, nil, ErrDeadlineExceeded
	}
	if l.config.Backpressure == FailFast {
		l.mu.Unlock()
		return 0, nil, ErrQueueFull
	}
	if l.waiters.Len() >= l.config.AdmissionWaitersCapacity {
		immediate := l.config.Backpressure == Throw && l.config.AdmissionWaitersCapacity == 0
		l.mu.Unlock()
		if immediate {
			return 0, nil, ErrQueueFull
		}
		return 0, nil, ErrOverloaded
	}

	waiter := &admissionWaiter{id: l.nextWaiterID(), granted: make(chan admissionGrant, 1)}
	l.waiters.PushBack(waiter)
	l.mu.Unlock()

	var timerCh <-chan time.Time
	if t := deadline.timer(); t != nil {
		timerCh = t.C
		defer t.Stop()
	}

	select {
	case grant := <-waiter.granted:
		return l.finalizeGrant(grant, makeJob)

	case <-ctx.Done():
		if grant, lost := l.claimWaiterLost(waiter); lost {
			return l.finalizeGrant(grant, makeJob)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, errAdmitCtxDeadline
		}
		return 0, nil, errAdmitCancelled

	case <-timerCh:
		if grant, lost := l.claimWaiterLost(waiter); lost {
			return l.finalizeGrant(grant, makeJob)
		}
		return 0, nil, ErrDeadlineExceeded

	case <-l.shutdownCh:
		if grant, lost := l.claimWaiterLost(waiter); lost {
			return l.finalizeGrant(grant, makeJob)
		}
		return 0, nil, admitShutdown
	}
}

// finalizeGrant is the back half of a successful admission-waiter grant:
// it materializes the job now that the ticket is known, pushes it into
// the slot admitNextWaiterLocked reserved, and wakes the worker loop.
func (l *Lane) finalizeGrant(grant admissionGrant, makeJob func(uint64) func()) (uint64, chan any, error) {
	l.mu.Lock()
	entry := l.tickets[grant.ticket]
	l.queue.Unreserve()
	l.queue.Push(grant.ticket, makeJob(grant.ticket))
	l.cond.Signal()
	l.mu.Unlock()
	return grant.ticket, entry.notify, nil
}

// claimWaiterLost implements the admission-side counterpart of the same
// race claimAbandon resolves for completion: a suspended waiter, woken by
// something other than its granted channel, tries to remove itself from
// the waiter list. If it succeeds, it won the race (nobody will ever grant
// it) and lost is false. If it fails, admitNextWaiterLocked already
// popped it concurrently and is guaranteed to send a grant, so this
// blocks to receive it and lost is true — the caller must honor the
// grant rather than report the original wakeup reason.
func (l *Lane) claimWaiterLost(waiter *admissionWaiter) (grant admissionGrant, lost bool) {
	l.mu.Lock()
	removed := l.waiters.Remove(waiter.id)
	l.mu.Unlock()
	if removed {
		return admissionGrant{}, false
	}
	return <-waiter.granted, true
}

// Package lane implements the blocking lane (spec component C8): an
// asynchronous façade over a bounded pool of dedicated worker threads that
// accepts, queues, dispatches, and completes user-supplied blocking work,
// with typed admission, deadline-aware backpressure, Pattern A
// cancellation, and strict shutdown semantics.
//
// Grounded on eventloop.Loop's OnOverload/backpressure hook and
// registry.go's ID-keyed waiter bookkeeping (see DESIGN.md), generalized
// from a single JS-flavoured event loop into the specification's
// admission-waiters / ticket / completion-waiters / abandoned model.
package lane

import "time"

// Backpressure names the policy applied when a lane's bounded queue is
// full at admission time (spec §4.6.1).
type Backpressure int

const (
	// Throw rejects immediately with ErrQueueFull when the queue is full
	// and AdmissionWaitersCapacity is zero; otherwise it behaves like
	// Suspend, registering the caller as an
	// admission waiter, and rejects with ErrOverloaded only once the
	// admission-waiters list itself is full. See DESIGN.md for why Throw
	// and Suspend are distinguished only at zero admission-waiters
	// capacity: the specification describes their suspended-wait
	// mechanics identically (§4.6.3) but its configuration-level summary
	// (§4.6.1) calls out Throw's zero-capacity behavior specifically.
	Throw Backpressure = iota
	// FailFast rejects immediately with ErrQueueFull whenever the queue is
	// full, without ever registering an admission waiter.
	FailFast
	// Suspend blocks the caller (cooperatively, via context/deadline)
	// until a slot becomes available, the caller's deadline elapses, the
	// caller is cancelled, or shutdown begins.
	Suspend
)

// Config holds the construction-time configuration for a Lane.
type Config struct {
	// WorkerCount is the number of dedicated worker threads. Defaults to 1
	// if <= 0.
	WorkerCount int

	// QueueCapacity is the maximum number of accepted-but-not-yet-running
	// jobs. Defaults to 16 if zero or negative — a literal 0 is not a
	// supported "direct handoff, never queue a job" mode. This lane is
	// built on a bounded array queue, and a zero-length one cannot hold
	// the in-flight grant a suspended admission waiter needs between
	// being granted a slot and pushing its job (see ticket.go's Reserve),
	// so 0 is coerced to the default like any other non-positive value.
	// See DESIGN.md's Open Question decisions for the full reasoning.
	QueueCapacity int

	// AdmissionWaitersCapacity is the maximum number of submitters that
	// may be suspended waiting to enter the queue. 0 means no submitter
	// may suspend (Throw and Suspend both degrade to immediate rejection
	// once the queue is full).
	AdmissionWaitersCapacity int

	// Backpressure selects the admission policy. The zero value is Throw.
	Backpressure Backpressure
}

func (c Config) resolve() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 16
	}
	if c.AdmissionWaitersCapacity < 0 {
		c.AdmissionWaitersCapacity = 0
	}
	return c
}

// Deadline models the specification's continuous/monotonic deadline
// parameter to Run: none (unbounded), now (fail admission immediately if
// not instantly acceptable), or an explicit point in time.
type Deadline struct {
	mode deadlineMode
	at   time.Time
}

type deadlineMode int

const (
	deadlineNone deadlineMode = iota
	deadlineNow
	deadlineAt
)

// DeadlineNone means no deadline: the caller is willing to wait
// indefinitely (subject to cancellation and shutdown).
func DeadlineNone() Deadline {
	return Deadline{mode: deadlineNone}
}

// DeadlineNow means "fail admission immediately if not instantly
// acceptable". Run(DeadlineNow(), body) and RunImmediate(body) are
// equivalent, per spec §9 Open Questions.
func DeadlineNow() Deadline {
	return Deadline{mode: deadlineNow}
}

// DeadlineAt sets an explicit deadline, measured against the monotonic
// clock embedded in time.Time values produced by time.Now.
func DeadlineAt(at time.Time) Deadline {
	return Deadline{mode: deadlineAt, at: at}
}

func (d Deadline) isPastOrNow() bool {
	switch d.mode {
	case deadlineNow:
		return true
	case deadlineAt:
		return !d.at.After(time.Now())
	default:
		return false
	}
}

// timer returns a *time.Timer firing when d elapses, or nil if d is
// DeadlineNone (no timer needed). Callers must Stop() a non-nil timer.
func (d Deadline) timer() *time.Timer {
	if d.mode != deadlineAt {
		return nil
	}
	return time.NewTimer(time.Until(d.at))
}

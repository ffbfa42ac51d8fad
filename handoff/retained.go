package handoff

import (
	"sync/atomic"

	"github.com/joeycumines/go-iocore/internal/fatal"
)

// RetainedToken is a move-only, sendable token representing exactly one
// outstanding strong reference to an object of type T, for the common
// pattern where a newly constructed reference-counted object must hand a
// strong reference to a thread it is spawning (spec component C4).
//
// Go's garbage collector makes an explicit retain/release refcount
// unnecessary for memory safety — holding any reference to T keeps it
// alive. RetainedToken's role is purely to make the *ownership contract*
// explicit and enforced: exactly one Take call is allowed, matching the
// specification's move-only single-consumption semantics, so callers get
// the same "double take is a bug" guarantee the source language gets from
// ~Copyable.
//
// If a RetainedToken is dropped without Take, the referenced object
// simply becomes unreachable and is collected once no other reference
// exists (unlike the source's manual retain/release, there is no leak);
// this is still treated as a caller bug per the specification, just one
// Go's GC happens to make non-fatal.
type RetainedToken[T any] struct {
	taken atomic.Bool
	value T
}

// NewRetainedToken constructs a RetainedToken wrapping value. Conceptually
// this "retains" value for transfer to another thread.
func NewRetainedToken[T any](value T) *RetainedToken[T] {
	return &RetainedToken[T]{value: value}
}

// Take consumes the token, yielding ownership of the wrapped value. It
// must be called exactly once; a second call traps.
func (t *RetainedToken[T]) Take() T {
	if t.taken.Swap(true) {
		fatal.Trap("handoff", "RetainedToken.Take called twice")
	}
	value := t.value
	var zero T
	t.value = zero
	return value
}

// Package handoff implements the one-shot, exactly-once mechanisms by
// which move-only values and retained object references cross thread
// boundaries into escaping closures (spec components C3 and C4).
//
// Both Cell/Token and Storage/Token usage shapes described in the
// specification are supported by the same underlying atomic state
// machine: empty(0) -> filled(1) -> taken(2). A second store or a take
// from any state other than filled is a contract violation and traps.
package handoff

import (
	"sync/atomic"

	"github.com/joeycumines/go-iocore/internal/fatal"
)

const (
	stateEmpty int32 = iota
	stateFilled
	stateTaken
)

// cell is the shared heap-allocated single-slot storage backing both Cell
// and Storage. It is never copied; Cell and Storage each hold a pointer to
// one, and Token holds the same pointer, so arbitrarily many Token copies
// can exist while store/take remain exactly-once across all of them.
type cell[T any] struct {
	state atomic.Int32
	value T
}

// Token is a sendable capability referencing a handoff cell. Multiple
// copies of a Token may exist (it is an ordinary Go value, freely copyable
// at the language level), but store and take are each globally
// exactly-once across all copies, enforced by the underlying cell's atomic
// state machine — copying a Token does not grant extra stores or takes.
type Token[T any] struct {
	c *cell[T]
}

// Cell is heap-allocated single-slot storage for a move-only T, used by
// the "Cell -> Token -> take" usage shape: a producer constructs Cell(value)
// already filled, obtains a Token from it, and a consumer calls
// Token.Take exactly once.
type Cell[T any] struct {
	c *cell[T]
}

// NewCell constructs an already-filled Cell holding value.
func NewCell[T any](value T) *Cell[T] {
	c := &cell[T]{}
	c.value = value
	c.state.Store(stateFilled)
	return &Cell[T]{c: c}
}

// Token returns the sendable Token referencing this Cell. It may be called
// more than once; every returned Token references the same underlying
// slot, and only one Take across all of them will succeed.
func (c *Cell[T]) Token() Token[T] {
	return Token[T]{c: c.c}
}

// Storage is empty single-slot storage for the "Storage -> Token.Store ->
// take" usage shape: a consumer constructs an empty Storage, passes a
// Token from it into an escaping closure, a producer calls Token.Store
// inside that closure, and the consumer calls Storage.Take after a
// happens-before edge (typically awaiting the closure's completion).
type Storage[T any] struct {
	c *cell[T]
}

// NewStorage constructs empty Storage.
func NewStorage[T any]() *Storage[T] {
	return &Storage[T]{c: &cell[T]{}}
}

// Token returns the sendable Token referencing this Storage's slot.
func (s *Storage[T]) Token() Token[T] {
	return Token[T]{c: s.c}
}

// Take consumes the slot, returning the stored value. It must only be
// called after the producer's Token.Store has happened-before this call
// (e.g. because the caller awaited the goroutine that called Store); if
// the slot is not yet filled or has already been taken, Take traps. Use
// TakeIfStored when "no value yet" must be tolerated.
func (s *Storage[T]) Take() T {
	return s.c.take()
}

// Store attempts to fill t's underlying cell with value. It succeeds only
// if the cell's state transitions empty -> filled; a second call to Store
// (from any copy of the Token referencing the same cell) traps.
func (t Token[T]) Store(value T) {
	if !t.c.state.CompareAndSwap(stateEmpty, stateFilled) {
		fatal.Trap("handoff", "Store called on a non-empty cell")
	}
	t.c.value = value
}

// Take consumes the cell, transitioning filled -> taken and returning the
// stored value. Taking from empty or already-taken traps.
func (t Token[T]) Take() T {
	return t.c.take()
}

// TakeIfStored is the only operation that tolerates an empty cell: it
// returns the zero value and false if the cell has not been filled yet,
// or the stored value and true if it has (transitioning filled -> taken).
// Calling it on an already-taken cell traps, same as Take.
func (t Token[T]) TakeIfStored() (T, bool) {
	return t.c.takeIfStored()
}

// TakeIfStored on Storage, see Token.TakeIfStored.
func (s *Storage[T]) TakeIfStored() (T, bool) {
	return s.c.takeIfStored()
}

func (c *cell[T]) take() T {
	if !c.state.CompareAndSwap(stateFilled, stateTaken) {
		fatal.Trap("handoff", "Take called on a cell that is not filled (state=%d)", c.state.Load())
	}
	value := c.value
	var zero T
	c.value = zero // release any reference held by the slot
	return value
}

func (c *cell[T]) takeIfStored() (T, bool) {
	if c.state.CompareAndSwap(stateFilled, stateTaken) {
		value := c.value
		var zero T
		c.value = zero
		return value, true
	}
	if c.state.Load() == stateEmpty {
		var zero T
		return zero, false
	}
	fatal.Trap("handoff", "TakeIfStored called on an already-taken cell")
	panic("unreachable")
}

// Package thread provides the move-only thread handle and thread-spawn
// primitives that the rest of this module's concurrency machinery is built
// on (spec components C1 and C2).
//
// Go does not expose raw OS thread creation; the idiomatic rendition of "a
// dedicated OS thread" is a goroutine that calls runtime.LockOSThread for
// its entire lifetime and never unlocks it, so the Go runtime retires the
// underlying OS thread together with the goroutine on exit. That is exactly
// what Spawn does.
package thread

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-iocore/handoff"
	"github.com/joeycumines/go-iocore/internal/fatal"
	"github.com/joeycumines/go-iocore/internal/goroutineid"
)

// SpawnError is returned by Spawn and SpawnValue when a new thread could
// not be created, mirroring the specification's ThreadSpawnError{platform,
// code}.
type SpawnError struct {
	// Platform names the runtime.GOOS the failure was observed on.
	Platform string
	// Code is a short, stable identifier for the failure cause.
	Code string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *SpawnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("thread: spawn failed on %s (%s): %v", e.Platform, e.Code, e.Cause)
	}
	return fmt.Sprintf("thread: spawn failed on %s (%s)", e.Platform, e.Code)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// bodyGoroutines maps the id of the goroutine running a Handle's body to
// that Handle's id, so IsCurrent and the join-on-self precondition check
// can answer "is the caller running inside this Handle's body" without
// goroutine-local storage (which Go does not provide).
var bodyGoroutines sync.Map // map[uint64(goroutine id)]uint64(handle id)

// Handle is a move-only, opaque identifier for a spawned OS-pinned
// goroutine. The zero value is not valid; obtain a Handle via Spawn,
// SpawnValue, MustSpawn, or MustSpawnValue.
//
// Join consumes the Handle exactly once; a second call, or dropping the
// Handle without ever calling Join, are both programmer errors (the latter
// is not detectable in Go and will simply leak the goroutine until body
// returns, matching the specification's "non-join deinit is a programmer
// error (may leak)").
type Handle struct {
	id         uint64
	platform   string
	platformID int

	joinOnce sync.Once
	joined   atomic.Bool
	done     chan struct{}
}

// PlatformID returns the best-effort kernel thread id for the OS thread
// this Handle's body is pinned to (0 if unknown on this platform, or if
// the body has not started yet).
func (h *Handle) PlatformID() int {
	return h.platformID
}

// Platform returns the runtime.GOOS the thread's body is running on (empty
// until the body has started).
func (h *Handle) Platform() string {
	return h.platform
}

var handleSeq atomic.Uint64

func newHandle() *Handle {
	return &Handle{
		id:   handleSeq.Add(1),
		done: make(chan struct{}),
	}
}

// Spawn creates a goroutine pinned to its own OS thread via
// runtime.LockOSThread, and invokes body exactly once on it. body is not
// invoked if Spawn itself fails.
//
// On supported platforms goroutine creation cannot itself fail (unlike a
// raw OS thread create syscall), so this path is unreachable in practice;
// the typed error return exists to preserve the specification's contract
// for callers that must check it, and for symmetry with MustSpawn's trap
// contract.
func Spawn(body func()) (*Handle, error) {
	if body == nil {
		panic("thread: Spawn called with nil body")
	}
	h := newHandle()
	started := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		h.platform = runtime.GOOS
		h.platformID = platformThreadID()
		gid := goroutineid.Current()
		bodyGoroutines.Store(gid, h.id)
		defer bodyGoroutines.Delete(gid)
		close(started)
		defer close(h.done)
		body()
	}()
	<-started
	return h, nil
}

// SpawnValue transfers ownership of a move-only value into the spawned
// thread's body using the same one-shot mechanism as handoff.Cell, so the
// value crosses the goroutine boundary exactly once. body receives the
// value on its single invocation; it is never invoked twice and never
// invoked at all if spawning fails.
func SpawnValue[T any](value T, body func(T)) (*Handle, error) {
	if body == nil {
		panic("thread: SpawnValue called with nil body")
	}
	tok := handoff.NewCell(value).Token()
	return Spawn(func() {
		body(tok.Take())
	})
}

// MustSpawn is the trap variant of Spawn for callers that cannot propagate
// a spawn failure (for example, executor construction). It aborts via
// internal/fatal.Trap, embedding the error in the diagnostic, instead of
// returning an error.
func MustSpawn(body func()) *Handle {
	h, err := Spawn(body)
	if err != nil {
		fatal.Trap("thread", "MustSpawn: %v", err)
	}
	return h
}

// MustSpawnValue is the trap variant of SpawnValue.
func MustSpawnValue[T any](value T, body func(T)) *Handle {
	h, err := SpawnValue(value, body)
	if err != nil {
		fatal.Trap("thread", "MustSpawnValue: %v", err)
	}
	return h
}

// IsCurrent reports whether the calling goroutine is the one h refers to.
func (h *Handle) IsCurrent() bool {
	v, ok := bodyGoroutines.Load(goroutineid.Current())
	return ok && v.(uint64) == h.id
}

// Join waits for the thread's body to return, then consumes h. Join must
// not be called from the thread's own body (that would deadlock); this
// precondition is checked, and violating it traps instead of hanging
// forever.
//
// A second call to Join is a programmer error and traps.
func (h *Handle) Join() {
	if h.IsCurrent() {
		fatal.Trap("thread", "Join called from the thread's own body (handle %d)", h.id)
	}
	if h.joined.Swap(true) {
		fatal.Trap("thread", "Join called twice on handle %d", h.id)
	}
	h.joinOnce.Do(func() {
		<-h.done
	})
}

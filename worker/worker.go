// Package worker provides a managed thread with a polled stop token
// (spec component C5): start/stop/join with exactly-once semantics, on top
// of package thread.
package worker

import (
	"sync/atomic"

	"github.com/joeycumines/go-iocore/internal/fatal"
	"github.com/joeycumines/go-iocore/thread"
)

// StopToken is a shared, atomic boolean a Worker's body is expected to
// poll periodically and exit promptly once it observes true. Stop uses
// release ordering; ShouldStop uses acquire ordering, matching the
// specification's {thread handle, stop token} model.
//
// No condition-variable wakeup is provided at this layer: a body that
// blocks indefinitely (e.g. on a channel receive) must compose its own
// wakeup, typically by selecting on a channel closed by the caller
// alongside polling ShouldStop, or by deriving a context.Context that is
// cancelled alongside Stop.
type StopToken struct {
	stopped atomic.Bool
}

// ShouldStop reports whether Stop has been called.
func (s *StopToken) ShouldStop() bool {
	return s.stopped.Load()
}

func (s *StopToken) set() {
	s.stopped.Store(true)
}

// Worker is a managed thread: Start spawns a goroutine pinned to its own
// OS thread (via package thread) that receives a *StopToken; the body is
// expected to poll StopToken.ShouldStop and return promptly once it
// observes true. Stop is idempotent; Join is consuming and must not be
// called from the worker's own body.
type Worker struct {
	token   StopToken
	handle  *thread.Handle
	started atomic.Bool
}

// Start spawns body on a new managed thread and returns the Worker that
// owns it. Each call constructs a fresh Worker, so every Worker is started
// exactly once, by the Start call that created it.
func Start(body func(token *StopToken)) *Worker {
	if body == nil {
		panic("worker: Start called with nil body")
	}
	w := &Worker{}
	if w.started.Swap(true) {
		fatal.Trap("worker", "Start called twice")
	}
	w.handle = thread.MustSpawnValue(&w.token, body)
	return w
}

// Stop sets the stop token. It is idempotent and safe to call from any
// goroutine, including multiple times or concurrently with Join.
func (w *Worker) Stop() {
	w.token.set()
}

// Join is consuming: it waits for the worker's body to return, then the
// Worker must not be used again. It must not be called from the worker's
// own body (package thread's precondition check covers this and traps).
func (w *Worker) Join() {
	w.handle.Join()
}

// StopAndJoin is a convenience combining Stop then Join, the common
// shutdown sequence.
func (w *Worker) StopAndJoin() {
	w.Stop()
	w.Join()
}

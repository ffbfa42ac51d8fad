// Package executor provides the serial executor (spec component C6) and
// its sharded pool (spec component C7): dedicated-OS-thread FIFO job
// runners suitable for pinning actor-like isolated state to a fixed
// thread, generalized from the teacher's event-loop run-loop shape
// (mutex+condvar-guarded ingress queue, an isRunning-style flag, one owned
// thread handle) to a plain, JS-semantics-free job executor.
package executor

import (
	"sync"

	"github.com/joeycumines/go-iocore/internal/fatal"
	"github.com/joeycumines/go-iocore/internal/obs"
	"github.com/joeycumines/go-iocore/thread"
)

// Thread is a serial executor: it owns one dedicated OS thread and a
// growable FIFO job queue guarded by a mutex and condition variable. Jobs
// enqueued on it always run one at a time, in FIFO order, on that single
// thread — this is the mechanism for pinning actor-like isolated state to
// a fixed thread (spec §9).
//
// Thread does not steal work from, or share work with, any other Thread;
// each is strictly serial by design (spec §1 non-goals).
type Thread struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     *jobQueue
	isRunning bool
	handle    *thread.Handle
	logger    obs.Logger
	shutOnce  sync.Once
}

// Option configures a Thread or Pool at construction.
type Option interface {
	apply(*options)
}

type options struct {
	logger obs.Logger
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger sets the Logger used for lifecycle and diagnostic messages.
// The default is the package-level obs.Global() logger (a no-op unless
// the caller has configured one).
func WithLogger(logger obs.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

func resolveOptions(opts []Option) *options {
	o := &options{logger: obs.Global()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}

// NewThread constructs and starts a serial executor: it spawns the worker
// thread, which immediately enters the run loop. The returned Thread is
// running and ready to accept jobs via Enqueue.
func NewThread(opts ...Option) *Thread {
	o := resolveOptions(opts)
	t := &Thread{
		queue:     newJobQueue(),
		isRunning: true,
		logger:    o.logger,
	}
	t.cond = sync.NewCond(&t.mu)
	t.handle = thread.MustSpawn(t.runLoop)
	t.logger.Log(obs.Entry{Level: obs.LevelInfo, Component: "executor", Message: "serial executor started"})
	return t
}

// Enqueue submits job to run on t's dedicated thread. If t is not running
// (Shutdown has been called, or is in progress), the job is silently
// dropped: per spec §4.4, the caller is responsible for higher-level
// lifecycle contracts (e.g. not enqueuing after shutdown in the first
// place); Enqueue itself never blocks and never returns an error.
func (t *Thread) Enqueue(job func()) {
	if job == nil {
		panic("executor: Enqueue called with nil job")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isRunning {
		return
	}
	t.queue.Push(job)
	t.cond.Signal()
}

// runLoop is the body of t's dedicated thread.
func (t *Thread) runLoop() {
	for {
		t.mu.Lock()
		for t.queue.Len() == 0 && t.isRunning {
			t.cond.Wait()
		}
		if !t.isRunning && t.queue.Len() == 0 {
			t.mu.Unlock()
			return
		}
		job := t.queue.Pop()
		t.mu.Unlock()

		t.runJob(job)
	}
}

func (t *Thread) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Log(obs.Entry{
				Level:     obs.LevelError,
				Component: "executor",
				Message:   "job panicked",
				Fields:    map[string]any{"panic": r},
			})
		}
	}()
	job()
}

// Shutdown clears the running flag, wakes the run loop, and joins its
// thread. It must not be called from the executor's own thread (that
// would deadlock waiting for itself to exit); this traps instead.
//
// A second call to Shutdown is a programmer error and traps.
func (t *Thread) Shutdown() {
	if t.handle.IsCurrent() {
		fatal.Trap("executor", "Shutdown called from the executor's own thread")
	}

	shutdownCalled := false
	t.shutOnce.Do(func() {
		shutdownCalled = true
		t.mu.Lock()
		t.isRunning = false
		t.mu.Unlock()
		t.cond.Broadcast()
		t.handle.Join()
		t.logger.Log(obs.Entry{Level: obs.LevelInfo, Component: "executor", Message: "serial executor shut down"})
	})
	if !shutdownCalled {
		fatal.Trap("executor", "Shutdown called twice")
	}
}

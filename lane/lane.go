package lane

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-iocore/internal/obs"
	"github.com/joeycumines/go-iocore/worker"
)

// lifecycleState mirrors executor.Thread's isRunning flag, but as a
// three-state atomic (spec §3: "running, shutdownInProgress,
// shutdownComplete").
type lifecycleState int32

const (
	stateRunning lifecycleState = iota
	stateShutdownInProgress
	stateShutdownComplete
)

// Lane is the blocking lane core (spec component C8): a bounded queue plus
// N dedicated worker threads, with typed admission, deadline-aware
// suspension, Pattern A cancellation, and strict shutdown.
//
// Lane itself is not generic (Go does not support generic methods on a
// non-generic type); per-call result types are supplied via the package
// level Run and RunImmediate functions, which take *Lane as their second
// argument (after the context) and box/unbox Result[T] through tickets as `any`.
type Lane struct {
	config Config
	logger obs.Logger
	onOver func(OverloadEvent)

	mu   sync.Mutex
	cond *sync.Cond

	state     atomic.Int32 // lifecycleState
	queue     *boundedQueue
	waiters   waiterList
	tickets   map[uint64]*ticketEntry
	ticketSeq uint64
	waiterSeq uint64

	// shutdownCh is closed exactly once, by Shutdown, and is the single
	// broadcast mechanism every suspended admission waiter and every
	// in-flight submitter selects on — equivalent to, but simpler than,
	// individually walking the waiter list and ticket map to notify each
	// record (spec §4.6.8), since a closed channel already behaves as a
	// broadcast to every receiver in Go.
	shutdownCh chan struct{}

	workers []*worker.Worker
}

// OverloadEvent is delivered to an optional overload handler whenever
// admission is rejected with ErrQueueFull or ErrOverloaded, so callers can
// wire their own telemetry without this package importing a metrics
// library.
type OverloadEvent struct {
	Err error
}

// Option configures a Lane at construction.
type Option func(*Lane)

// WithLogger sets the Logger used for lifecycle and diagnostic messages.
// The default is the package-level obs.Global() logger.
func WithLogger(logger obs.Logger) Option {
	return func(l *Lane) { l.logger = logger }
}

// WithOverloadHandler registers fn to be invoked (synchronously, on the
// rejected submitter's own call to Run/RunImmediate, so it must not block)
// whenever admission is rejected due to a full queue or exhausted
// admission-waiters capacity.
func WithOverloadHandler(fn func(OverloadEvent)) Option {
	return func(l *Lane) { l.onOver = fn }
}

// New constructs and starts a Lane: it spawns config.WorkerCount worker
// threads, each entering the worker loop described in spec §4.6.5.
func New(config Config, opts ...Option) *Lane {
	config = config.resolve()
	l := &Lane{
		config:     config,
		logger:     obs.Global(),
		queue:      newBoundedQueue(config.QueueCapacity),
		tickets:    make(map[uint64]*ticketEntry),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.cond = sync.NewCond(&l.mu)

	l.workers = make([]*worker.Worker, config.WorkerCount)
	for i := range l.workers {
		l.workers[i] = worker.Start(l.workerLoop)
	}

	l.logger.Log(obs.Entry{
		Level: obs.LevelInfo, Component: "lane", Message: "lane started",
		Fields: map[string]any{"workers": config.WorkerCount, "queueCapacity": config.QueueCapacity},
	})
	return l
}

func (l *Lane) lifecycle() lifecycleState {
	return lifecycleState(l.state.Load())
}

// workerLoop is the body run by each of the lane's dedicated worker
// threads (spec §4.6.5): wait for a job or a stop request, run the job
// with panic containment, free the slot it occupied for the next
// suspended admission waiter (if any), and repeat.
//
// Once a stop is requested (Shutdown), a job already popped and running
// is allowed to finish, but anything still sitting in the queue is
// drained without being invoked (spec §4.6.8: queued jobs are discarded,
// not executed, at shutdown). Their submitters still observe
// shutdownInProgress — not a fabricated completion — via the shutdownCh
// branch of Run's select and claimAbandon, since the ticket entry is left
// in place for them to find.
func (l *Lane) workerLoop(token *worker.StopToken) {
	for {
		l.mu.Lock()
		for l.queue.Len() == 0 && !token.ShouldStop() {
			l.cond.Wait()
		}
		if l.queue.Len() == 0 {
			l.mu.Unlock()
			return
		}
		if token.ShouldStop() {
			for l.queue.Len() > 0 {
				l.queue.Pop()
			}
			l.mu.Unlock()
			return
		}
		_, job := l.queue.Pop()
		l.admitNextWaiterLocked()
		l.mu.Unlock()

		l.runJob(job)
	}
}

// runJob is a last-resort safety net: job closures built by Run already
// recover their own panics and box them as a PanicError failure, so this
// only fires if a bug elsewhere in the closure (not the caller's body)
// panics.
func (l *Lane) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Log(obs.Entry{
				Level: obs.LevelError, Component: "lane", Message: "job panicked outside body recovery",
				Fields: map[string]any{"panic": r},
			})
		}
	}()
	job()
}

// admitNextWaiterLocked pops the oldest suspended admission waiter (if
// any) and reserves it a queue slot: allocates a ticket and its ticket
// entry, reserves the slot the departing job just freed (boundedQueue.Reserve,
// so no fresh submitter's fast path can claim it first), then wakes the
// waiter via its granted channel. The waiter itself (still blocked in
// admit's select) is responsible for pushing its job into the reserved
// slot once it wakes; see finalizeGrant.
//
// Must be called with l.mu held.
func (l *Lane) admitNextWaiterLocked() {
	if l.waiters.Len() == 0 || !l.queue.HasSpace() {
		return
	}
	waiter := l.waiters.PopFront()
	if waiter == nil {
		return
	}
	ticket := l.nextTicket()
	l.tickets[ticket] = newTicketEntry()
	l.queue.Reserve()
	waiter.granted <- admissionGrant{ticket: ticket}
}

func (l *Lane) nextTicket() uint64 {
	l.ticketSeq++
	return l.ticketSeq
}

func (l *Lane) nextWaiterID() uint64 {
	l.waiterSeq++
	return l.waiterSeq
}

// completeTicket is called by a job closure (built in run.go's submit)
// once its body has produced a Result[T] boxed as `any`. It implements
// the completion-wins / late-completion-drop half of spec §4.6.6: if the
// submitter already abandoned the ticket (lost the select to a
// cancellation, deadline, or shutdown), the result is silently discarded
// here rather than delivered to a notify channel nobody will ever read
// again.
func (l *Lane) completeTicket(ticket uint64, boxed any) {
	l.mu.Lock()
	entry, ok := l.tickets[ticket]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.tickets, ticket)
	abandoned := entry.state == ticketAbandoned
	l.mu.Unlock()

	if abandoned {
		return
	}
	entry.notify <- boxed
}

// reportOverload invokes the overload handler, if any, without holding
// the lane's lock.
func (l *Lane) reportOverload(err error) {
	if l.onOver != nil {
		l.onOver(OverloadEvent{Err: err})
	}
}

// Stats is a point-in-time snapshot of a Lane's internal bookkeeping,
// useful for callers that want to export their own metrics.
type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	AdmissionWaiters int
	InFlight         int
}

// Stats returns a snapshot of l's current queue depth, admission-waiter
// count, and in-flight (dequeued-but-not-yet-completed) job count.
func (l *Lane) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	waiting := 0
	for _, e := range l.tickets {
		if e.state == ticketWaiting {
			waiting++
		}
	}
	return Stats{
		QueueDepth:       l.queue.Len(),
		QueueCapacity:    l.queue.Cap(),
		AdmissionWaiters: l.waiters.Len(),
		InFlight:         waiting - l.queue.Len(),
	}
}

// Shutdown transitions the lane from running to shutdownInProgress,
// broadcasts that transition to every suspended admission waiter and
// every in-flight submitter via the closed shutdownCh, stops and joins
// every worker thread, then transitions to shutdownComplete.
//
// Calling Shutdown when the lane is not in the running state is a no-op
// (idempotent), matching spec §4.6.8 step 1. Calling Shutdown from within
// a job body running on one of the lane's own workers traps (via the
// worker's underlying thread.Handle.Join self-join precondition), the
// same precondition executor.Thread.Shutdown enforces.
func (l *Lane) Shutdown() {
	if !l.state.CompareAndSwap(int32(stateRunning), int32(stateShutdownInProgress)) {
		return
	}

	close(l.shutdownCh)

	l.mu.Lock()
	for _, w := range l.workers {
		w.Stop()
	}
	l.cond.Broadcast()
	l.mu.Unlock()

	for _, w := range l.workers {
		w.Join()
	}

	l.state.Store(int32(stateShutdownComplete))
	l.logger.Log(obs.Entry{Level: obs.LevelInfo, Component: "lane", Message: "lane shut down"})
}

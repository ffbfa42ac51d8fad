package lane

// admissionWaiter is a submitter suspended awaiting a free queue slot
// (spec §4.6.3: "a suspended submitter is kept as a record containing: a
// one-shot result sink, the submitter's deadline, a pointer back to the
// admission-waiter record, and a cancellation hook").
//
// granted is buffered with capacity 1: only admitNextWaiterLocked (on a
// freed slot) ever sends to it, at most once per waiter, and the send
// never blocks.
type admissionWaiter struct {
	id      uint64
	granted chan admissionGrant
}

// admissionGrant is what an admissionWaiter receives: a ticket for a job
// now sitting in the queue. Shutdown never sends a grant; every suspended
// waiter instead wakes via the lane's shared shutdownCh (see admit), so
// admissionGrant carries no rejection case.
type admissionGrant struct {
	ticket uint64
}

// admitShutdown is the sentinel rejected error used only internally to
// signal "the lane began shutting down while you were suspended"; Run
// translates this into a lifecycle.Error[error] with KindShutdownInProgress
// rather than surfacing it as a domain error.
var admitShutdown = &shutdownSentinel{}

type shutdownSentinel struct{}

func (*shutdownSentinel) Error() string { return "lane: shutdown in progress" }

// errAdmitCancelled and errAdmitCtxDeadline are sentinels returned by
// admit only while a submitter was suspended waiting for a queue slot;
// Run uses them to recover which of the two distinct ctx.Err() cases woke
// the suspend, since admit itself returns a single error value.
var (
	errAdmitCancelled  = &admitCtxSentinel{reason: "cancelled"}
	errAdmitCtxDeadline = &admitCtxSentinel{reason: "deadline exceeded"}
)

// admitCtxSentinel is not zero-sized, so the two sentinels above are
// guaranteed to be distinct pointers (pointers to distinct zero-size
// values may compare equal in Go).
type admitCtxSentinel struct{ reason string }

func (*admitCtxSentinel) Error() string { return "lane: admission wait ended by ambient context" }

// waiterList is the FIFO list of admission waiters. A plain slice is used
// rather than a ring buffer: admissionWaitersCapacity is expected to be
// small, and removal-by-id (for cancellation while suspended) needs a
// linear scan regardless of the backing structure, so the extra
// complexity of a ring buffer buys nothing here.
type waiterList struct {
	items []*admissionWaiter
}

func (w *waiterList) Len() int { return len(w.items) }

func (w *waiterList) PushBack(waiter *admissionWaiter) {
	w.items = append(w.items, waiter)
}

// PopFront removes and returns the oldest waiter, or nil if empty.
func (w *waiterList) PopFront() *admissionWaiter {
	if len(w.items) == 0 {
		return nil
	}
	waiter := w.items[0]
	w.items = w.items[1:]
	return waiter
}

// Remove deletes the waiter with the given id, reporting whether it was
// found (false means it was already popped by PopFront, concurrently).
func (w *waiterList) Remove(id uint64) bool {
	for i, waiter := range w.items {
		if waiter.id == id {
			w.items = append(w.items[:i], w.items[i+1:]...)
			return true
		}
	}
	return false
}

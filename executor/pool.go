package executor

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/exp/slices"

	// automaxprocs adjusts runtime.GOMAXPROCS to match the cgroup CPU
	// quota on import; DefaultPoolSize reads runtime.GOMAXPROCS(0)
	// afterwards so the pool's default size reflects that adjustment
	// rather than the host's raw core count, matching the teacher's root
	// go.mod dependency on this package.
	_ "go.uber.org/automaxprocs"

	"github.com/joeycumines/go-iocore/internal/fatal"
)

// DefaultPoolSize returns min(4, effective GOMAXPROCS), matching spec
// §4.5's default sharded-pool count. Importing go.uber.org/automaxprocs
// (see this file's import block) makes runtime.GOMAXPROCS(0) reflect any
// cgroup CPU quota, so this is container-aware the same way the spec's
// "processorCount" collaborator is expected to be.
func DefaultPoolSize() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// Pool is a fixed-size array of serial executors (spec component C7),
// built once at construction. Selection is via Next (round-robin) or At
// (deterministic index), used respectively for coarse-grained affinity and
// explicit pinning.
type Pool struct {
	executors []*Thread
	counter   atomic.Uint64
}

// NewPool constructs count serial executors (count <= 0 uses
// DefaultPoolSize). Count is fixed for the lifetime of the Pool.
func NewPool(count int, opts ...Option) *Pool {
	if count <= 0 {
		count = DefaultPoolSize()
	}
	p := &Pool{executors: make([]*Thread, count)}
	for i := range p.executors {
		p.executors[i] = NewThread(opts...)
	}
	return p
}

// Count returns the fixed number of executors in p.
func (p *Pool) Count() int {
	return len(p.executors)
}

// Next advances a relaxed atomic round-robin counter and returns the
// executor at (old value) mod Count. Used for coarse-grained affinity
// where the caller does not care which shard handles a given job, only
// that load is spread across all shards.
func (p *Pool) Next() *Thread {
	old := p.counter.Add(1) - 1
	return p.executors[old%uint64(len(p.executors))]
}

// At returns the executor at index mod Count, for callers that want
// deterministic pinning (e.g. hashing a key to a shard).
func (p *Pool) At(index int) *Thread {
	if index < 0 {
		index = -index
	}
	return p.executors[index%len(p.executors)]
}

// Executors returns a defensive copy of the pool's executors, in index
// order. Mutating the returned slice does not affect p.
func (p *Pool) Executors() []*Thread {
	return slices.Clone(p.executors)
}

// Shutdown shuts each executor down in index order. It must not be called
// from any of the pool's own threads.
//
// A second call to Shutdown is a programmer error; the underlying Thread
// instances each trap on double-shutdown, which this method surfaces by
// not recovering from it.
func (p *Pool) Shutdown() {
	for _, e := range p.executors {
		if e.handle.IsCurrent() {
			fatal.Trap("executor", "Pool.Shutdown called from one of the pool's own threads")
		}
	}
	for _, e := range p.executors {
		e.Shutdown()
	}
}

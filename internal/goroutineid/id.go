// Package goroutineid extracts the numeric id of the calling goroutine.
//
// Go deliberately does not expose goroutine identity as part of its public
// API. This package uses the well-known workaround of parsing the header
// line of a runtime stack trace, the same technique used by
// petermattis/goid and similar packages. It exists purely to let
// thread.Handle compare "the goroutine that is currently running" against
// "the goroutine a Handle was created for", for IsCurrent and join-on-self
// precondition checks; it is not a general-purpose scheduling primitive.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the id of the calling goroutine.
//
// This allocates and is relatively slow (it captures and parses a stack
// trace); callers should not call it on a hot path more than once per
// precondition check.
func Current() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	// Expected format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		panic("goroutineid: unexpected stack format: " + string(buf))
	}
	buf = buf[len(prefix):]

	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		panic("goroutineid: unexpected stack format")
	}

	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		panic("goroutineid: " + err.Error())
	}
	return id
}

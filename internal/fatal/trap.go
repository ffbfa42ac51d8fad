// Package fatal centralizes handling of programmer-error preconditions that
// the source specification models as process-aborting traps: double
// shutdown, join-on-self, double-take on a Handoff cell, and similar
// contract violations that indicate a bug in the calling code rather than a
// runtime condition.
//
// Go has no supported way to abort the process with a custom diagnostic
// short of os.Exit (which skips deferred cleanup) or panic. Trap panics,
// which is the idiomatic Go rendition: it unwinds with a deterministic
// message, and a caller that truly cannot tolerate that is expected to wrap
// the call in its own recover boundary, same as any other unrecoverable
// invariant violation in Go code.
package fatal

import (
	"fmt"

	"github.com/joeycumines/go-iocore/internal/obs"
)

// Trap logs entry at error level via the global observer, then panics with
// a deterministic, formatted message. It never returns.
func Trap(component, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	obs.Global().Log(obs.Entry{
		Level:     obs.LevelError,
		Component: component,
		Message:   msg,
	})
	panic(component + ": " + msg)
}

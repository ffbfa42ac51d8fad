//go:build linux || darwin

package thread

import "golang.org/x/sys/unix"

// platformThreadID returns the kernel thread id of the calling OS thread,
// best-effort. It supplements the goroutine-id-based identity used
// elsewhere in this package with the actual platform handle the
// specification's Thread handle attribute calls for (spec §3: "Attributes:
// platform handle and self-identity predicate").
//
// This must only be called from a goroutine that has called
// runtime.LockOSThread, otherwise the returned id is meaningless (the
// calling goroutine is not pinned to a single OS thread).
func platformThreadID() int {
	return unix.Gettid()
}

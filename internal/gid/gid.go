// Package gid identifies the calling goroutine, so a single-threaded event
// loop can assert "this call came from my own loop goroutine" without
// plumbing a token through every call site. Grounded on the stack-header
// parsing technique in joeycumines-go-utilpkg/eventloop.Loop.isLoopThread
// (getGoroutineID), the closest thing Go offers to a thread identity check
// without cgo or unsafe access to the runtime's internal g struct.
package gid

import "runtime"

// Current returns the calling goroutine's runtime-assigned ID, parsed out
// of the "goroutine N [state]:" header that runtime.Stack prepends to a
// single-goroutine dump. The ID is only unique while the goroutine is
// alive; callers compare it against a value captured earlier in the same
// goroutine's lifetime, never store it across a goroutine's exit.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

package channel

import "go.uber.org/atomic"

var nextID atomic.Int64

// NewID returns a process-wide unique channel identity, satisfying
// spec.md §3's "a stable identity" attribute.
func NewID() int64 { return nextID.Inc() }

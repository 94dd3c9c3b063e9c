package selector

import "go.uber.org/atomic"

// WorkerSupplier picks the worker selector an Acceptor hands the next
// accepted connection to (spec.md §6.3). Lives in package selector,
// rather than api, because it is typed over *Worker directly.
type WorkerSupplier func() *Worker

// RoundRobin cycles through workers in order, wrapping around. Returns a
// supplier that always returns nil if workers is empty.
func RoundRobin(workers []*Worker) WorkerSupplier {
	ws := append([]*Worker(nil), workers...)
	var next atomic.Uint64
	return func() *Worker {
		n := uint64(len(ws))
		if n == 0 {
			return nil
		}
		i := next.Inc() - 1
		return ws[i%n]
	}
}

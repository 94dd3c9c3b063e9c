// Package pollertest provides a scripted poller.Poller for deterministic
// selector tests, grounded on momentics-hioload-ws/fake/fakereactor.go's
// hand-rolled-fake-implementing-the-library's-own-interface idiom: rather
// than mock the production epoll primitive, this implements the real
// poller.Poller contract with behaviour the test controls directly.
package pollertest

import (
	"sync"
	"time"

	"github.com/momentics/nioselect/internal/poller"
)

// Fake implements poller.Poller. Register/Modify/Deregister bookkeeping is
// real (so tests can inspect what the selector did); Poll results are
// entirely scripted via Script, and Wakeup/Close drive a Poll blocked with
// nothing scripted, mirroring the real primitive's wake-from-other-thread
// contract.
type Fake struct {
	mu      sync.Mutex
	regs    map[int]poller.Interest
	batches [][]poller.ReadyKey
	pollErr error

	registerErr error
	modifyErr   error

	closed  bool
	wakeups int
	wake    chan struct{}
}

// New constructs an empty Fake, ready to Poll.
func New() *Fake {
	return &Fake{
		regs: make(map[int]poller.Interest),
		wake: make(chan struct{}, 1),
	}
}

func (f *Fake) Register(fd int, interest poller.Interest, attachment any) (poller.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return poller.Token{}, f.registerErr
	}
	f.regs[fd] = interest
	return poller.Token{Attachment: attachment}, nil
}

func (f *Fake) Modify(tok poller.Token, interest poller.Interest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.modifyErr != nil {
		return f.modifyErr
	}
	if fd, ok := fdOf(tok); ok {
		f.regs[fd] = interest
	}
	return nil
}

// fdOf recovers the registered fd for a Token carrying a *channel-ish
// attachment with an Fd() method, since poller.Token's own fd field is
// unexported and unavailable outside package poller.
func fdOf(tok poller.Token) (int, bool) {
	fder, ok := tok.Attachment.(interface{ Fd() int })
	if !ok {
		return 0, false
	}
	return fder.Fd(), true
}

func (f *Fake) Deregister(tok poller.Token) error { return nil }

func (f *Fake) Poll(timeout time.Duration, out []poller.ReadyKey) ([]poller.ReadyKey, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return append(out[:0], batch...), nil
	}
	if f.closed {
		f.mu.Unlock()
		return out[:0], poller.ErrClosed
	}
	if f.pollErr != nil {
		err := f.pollErr
		f.mu.Unlock()
		return out[:0], err
	}
	f.mu.Unlock()

	var tmo <-chan time.Time
	if timeout >= 0 {
		tmr := time.NewTimer(timeout)
		defer tmr.Stop()
		tmo = tmr.C
	}
	select {
	case <-f.wake:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed && len(f.batches) == 0 {
			return out[:0], poller.ErrClosed
		}
		if len(f.batches) > 0 {
			batch := f.batches[0]
			f.batches = f.batches[1:]
			return append(out[:0], batch...), nil
		}
		return out[:0], nil
	case <-tmo:
		return out[:0], nil
	}
}

func (f *Fake) Wakeup() error {
	f.mu.Lock()
	f.wakeups++
	f.mu.Unlock()
	f.nudge()
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	f.nudge()
	return nil
}

func (f *Fake) nudge() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Script queues one batch of ready keys to be returned by the next Poll
// call that has nothing else queued ahead of it, and wakes a blocked Poll.
func (f *Fake) Script(batch []poller.ReadyKey) {
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
	f.nudge()
}

// SetModifyErr forces every subsequent Modify call to fail with err.
func (f *Fake) SetModifyErr(err error) {
	f.mu.Lock()
	f.modifyErr = err
	f.mu.Unlock()
}

// SetRegisterErr forces every subsequent Register call to fail with err.
func (f *Fake) SetRegisterErr(err error) {
	f.mu.Lock()
	f.registerErr = err
	f.mu.Unlock()
}

// Wakeups returns how many times Wakeup has been called.
func (f *Fake) Wakeups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wakeups
}

// Interest returns the last interest set registered for fd, for
// assertions, and whether fd was ever registered.
func (f *Fake) Interest(fd int) (poller.Interest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.regs[fd]
	return i, ok
}

var _ poller.Poller = (*Fake)(nil)

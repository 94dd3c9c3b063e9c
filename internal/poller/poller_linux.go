//go:build linux

// Linux epoll(7) readiness primitive, with an eventfd(2) registered into
// the same epoll set so that Wakeup() can interrupt a blocked EpollWait
// from any goroutine.
//
// Grounded on momentics-hioload-ws/reactor/reactor_linux.go (epoll
// register/wait/close shape), JemmyH-gogoredis/poller/epoll.go (eventfd
// wakeup registered as an EPOLLIN member of the same epoll set), and
// joeycumines-go-utilpkg/eventloop/poller_linux.go + wakeup_linux.go
// (dynamic fd bookkeeping and unix.Eventfd wakeup fd creation).

package poller

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd     int
	wakeFD   int
	mu       sync.Mutex
	byFD     map[int]*tokenGen
	attach   map[int]any
	closed   atomic.Bool
	wakeBuf  [8]byte
}

// New constructs the Linux epoll-backed Poller.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &epollPoller{
		epfd:   epfd,
		wakeFD: wakeFD,
		byFD:   make(map[int]*tokenGen),
		attach: make(map[int]any),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, err
	}

	return p, nil
}

func toEpollEvents(i Interest) uint32 {
	var ev uint32
	if i.Has(Read) {
		ev |= unix.EPOLLIN
	}
	if i.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpollEvents(ev uint32) Interest {
	var i Interest
	if ev&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		i |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		i |= Write
	}
	return i
}

func (p *epollPoller) Register(fd int, interest Interest, attachment any) (Token, error) {
	if p.closed.Load() {
		return Token{}, ErrClosed
	}
	gen := &tokenGen{valid: true}

	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return Token{}, err
	}

	p.mu.Lock()
	p.byFD[fd] = gen
	p.attach[fd] = attachment
	p.mu.Unlock()

	return Token{fd: fd, gen: gen, Attachment: attachment}, nil
}

func (p *epollPoller) Modify(tok Token, interest Interest) error {
	if p.closed.Load() {
		return ErrClosed
	}
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(tok.fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, tok.fd, &ev)
}

func (p *epollPoller) Deregister(tok Token) error {
	tok.gen.valid = false

	p.mu.Lock()
	delete(p.byFD, tok.fd)
	delete(p.attach, tok.fd)
	p.mu.Unlock()

	if p.closed.Load() {
		return nil
	}
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, tok.fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (p *epollPoller) Poll(timeout time.Duration, out []ReadyKey) ([]ReadyKey, error) {
	out = out[:0]
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	var raw [256]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		if p.closed.Load() {
			// CloseInterrupt closed epfd out from under a blocked
			// EpollWait; that surfaces as EBADF here, which we fold
			// into the documented ErrClosed condition.
			return out, ErrClosed
		}
		return out, err
	}

	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == p.wakeFD {
			p.drainWake()
			continue
		}

		p.mu.Lock()
		gen, ok := p.byFD[fd]
		attachment := p.attach[fd]
		p.mu.Unlock()
		if !ok {
			continue
		}

		out = append(out, ReadyKey{
			Token: Token{fd: fd, gen: gen, Attachment: attachment},
			Ready: fromEpollEvents(raw[i].Events),
			Valid: gen.valid,
		})
	}
	return out, nil
}

func (p *epollPoller) drainWake() {
	for {
		n, err := unix.Read(p.wakeFD, p.wakeBuf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *epollPoller) Wakeup() error {
	var b [8]byte
	b[0] = 1
	_, err := unix.Write(p.wakeFD, b[:])
	if err == unix.EAGAIN {
		// counter already non-zero; a pending wake is already visible.
		return nil
	}
	return err
}

func (p *epollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = unix.Close(p.wakeFD)
	return unix.Close(p.epfd)
}

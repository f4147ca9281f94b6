//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// IOEvents represents the type of I/O events to monitor, a bitwise
// combination of the Event* constants.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventPriority indicates urgent out-of-band data is available. Priority
	// interest implies read interest; see [Reactor.WaitForIO].
	EventPriority
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// poller manages I/O readiness registration using epoll (Linux).
//
// The poller is touched only from the scheduler's logical thread, so it
// carries no locking; the registration bookkeeping lives in the reactor's
// watch sets.
type poller struct {
	epfd     int
	eventBuf []unix.EpollEvent
	closed   bool
}

// init initializes the epoll instance.
func (p *poller) init(eventBuffer int) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.eventBuf = make([]unix.EpollEvent, eventBuffer)
	return nil
}

// close closes the epoll instance.
func (p *poller) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}

// addFD registers a file descriptor for readiness monitoring.
func (p *poller) addFD(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

// modifyFD updates the events being monitored for a file descriptor. The old
// mask is unused on Linux; epoll replaces the mask wholesale.
func (p *poller) modifyFD(fd int, _, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

// removeFD removes a file descriptor from monitoring.
func (p *poller) removeFD(fd int, _ IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait performs one blocking multiplexed wait and dispatches every readiness
// result it returned, so a single call is fully drained. timeoutMs of -1
// blocks indefinitely. EINTR is swallowed and reported as zero events.
func (p *poller) wait(timeoutMs int, dispatch func(fd int, events IOEvents)) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		dispatch(int(p.eventBuf[i].Fd), epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}

// eventsToEpoll converts IOEvents to epoll event flags.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	if events&EventPriority != 0 {
		epollEvents |= unix.EPOLLPRI
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLPRI != 0 {
		events |= EventPriority
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

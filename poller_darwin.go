//go:build darwin

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
	// EventPriority indicates urgent out-of-band data. kqueue has no
	// priority filter, so on Darwin this is folded into EventRead.
	EventPriority
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// poller manages I/O readiness registration using kqueue (Darwin).
//
// The poller is touched only from the scheduler's logical thread, so it
// carries no locking; the registration bookkeeping lives in the reactor's
// watch sets.
type poller struct {
	kq       int
	eventBuf []unix.Kevent_t
	closed   bool
}

// init initializes the kqueue instance.
func (p *poller) init(eventBuffer int) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.eventBuf = make([]unix.Kevent_t, eventBuffer)
	return nil
}

// close closes the kqueue instance.
func (p *poller) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.kq)
}

// addFD registers a file descriptor for readiness monitoring.
func (p *poller) addFD(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	changes := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

// modifyFD updates the filters registered for a file descriptor. Filters
// present in old but absent from events are deleted; the rest are (re)added,
// which kqueue treats as an update.
func (p *poller) modifyFD(fd int, old, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	changes := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	changes = append(changes, eventsToKevents(fd, filtersOf(old)&^filtersOf(events), unix.EV_DELETE)...)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

// removeFD removes a file descriptor from monitoring.
func (p *poller) removeFD(fd int, old IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	changes := eventsToKevents(fd, old, unix.EV_DELETE)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

// wait performs one blocking multiplexed wait and dispatches every readiness
// result it returned, so a single call is fully drained. timeoutMs of -1
// blocks indefinitely. EINTR is swallowed and reported as zero events.
func (p *poller) wait(timeoutMs int, dispatch func(fd int, events IOEvents)) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	var timeout *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		timeout = &ts
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, timeout)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		dispatch(int(p.eventBuf[i].Ident), keventToEvents(&p.eventBuf[i]))
	}
	return n, nil
}

// filtersOf normalizes an event mask to the directions kqueue can express:
// priority interest collapses into read interest.
func filtersOf(events IOEvents) IOEvents {
	filters := events & (EventRead | EventWrite)
	if events&EventPriority != 0 {
		filters |= EventRead
	}
	return filters
}

// eventsToKevents converts an event mask to kqueue change entries.
func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	filters := filtersOf(events)

	if filters&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if filters&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}

	return kevents
}

// keventToEvents converts a kqueue event to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	return events
}

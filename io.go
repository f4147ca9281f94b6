package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// ioWatch is an I/O watch-set entry: the task waiting on one direction of one
// descriptor, with the events it asked for. At most one task may be
// registered per (fd, direction) pair; re-registering overwrites the prior
// waiter.
type ioWatch struct {
	task   *Task
	events IOEvents
}

// updatePollerFD reconciles the poller's registration for fd with the
// current contents of the watch sets. The wake fd is managed separately and
// never passes through here.
func (r *Reactor) updatePollerFD(fd int) error {
	var mask IOEvents
	if w, ok := r.readers[fd]; ok {
		mask |= w.events
	}
	if _, ok := r.writers[fd]; ok {
		mask |= EventWrite
	}

	old := r.iomask[fd]
	if mask == old {
		return nil
	}

	var err error
	switch {
	case old == 0:
		err = r.poller.addFD(fd, mask)
	case mask == 0:
		err = r.poller.removeFD(fd, old)
	default:
		err = r.poller.modifyFD(fd, old, mask)
	}
	if err != nil {
		return err
	}

	if mask == 0 {
		delete(r.iomask, fd)
	} else {
		r.iomask[fd] = mask
	}
	return nil
}

// WaitForIO registers the current task for the requested events on fd and
// suspends it until the drain loop's poll reports readiness. The return
// value is the subset of requested events actually ready, plus EventError
// and EventHangup when the poll reported them.
//
// EventPriority implies read interest: priority data is not distinguished
// from ordinary readability beyond the reported event bit (on Darwin, where
// kqueue has no priority filter, it is folded into EventRead entirely).
//
// A positive timeout bounds the suspension: the task also enters the wait
// registry, and whichever of readiness or the deadline fires first wins. A
// timed-out wait returns zero events. timeout <= 0 waits indefinitely for
// readiness.
//
// Returns zero immediately when called from outside a running task.
func (r *Reactor) WaitForIO(fd int, events IOEvents, timeout time.Duration) IOEvents {
	if getGoroutineID() != r.activeGID.Load() {
		r.logger.Warning().Int("fd", fd).Log("waitForIO from outside a running task")
		return 0
	}
	t := r.current
	if t == nil {
		r.logger.Warning().Int("fd", fd).Log("waitForIO from outside a running task")
		return 0
	}
	if fd < 0 || fd == r.wakeFd {
		r.logger.Warning().Int("fd", fd).Log("waitForIO on invalid fd")
		return 0
	}

	req := events & (EventRead | EventWrite | EventPriority)
	if req == 0 {
		return 0
	}
	if req&EventPriority != 0 {
		req |= EventRead
	}

	if req&(EventRead|EventPriority) != 0 {
		r.readers[fd] = &ioWatch{task: t, events: req & (EventRead | EventPriority)}
	}
	if req&EventWrite != 0 {
		r.writers[fd] = &ioWatch{task: t, events: EventWrite}
	}
	if err := r.updatePollerFD(fd); err != nil {
		r.logger.Warning().Err(err).Int("fd", fd).Log("poller registration failed")
		r.clearIOWatch(fd, t)
		return 0
	}

	if timeout > 0 {
		r.addWait(t, time.Now().Add(timeout), ReasonIO)
	}

	if req&EventWrite != 0 && req&EventRead == 0 {
		t.state = TaskWaitingWritable
	} else {
		t.state = TaskWaitingReadable
	}
	r.logger.Debug().
		Uint64("task", t.id).
		Int("fd", fd).
		Str("state", t.state.String()).
		Log("task waiting for io")

	got := t.suspend()

	// Whichever wake path fired removed its own entry; clear whatever the
	// other one left behind (the unfired timer, or the unfired watch).
	r.clearIOWatch(fd, t)
	r.removeWait(t)

	return got & (req | EventError | EventHangup)
}

// clearIOWatch removes t's watch-set entries for fd, leaving entries
// belonging to other tasks untouched.
func (r *Reactor) clearIOWatch(fd int, t *Task) {
	changed := false
	if w, ok := r.readers[fd]; ok && w.task == t {
		delete(r.readers, fd)
		changed = true
	}
	if w, ok := r.writers[fd]; ok && w.task == t {
		delete(r.writers, fd)
		changed = true
	}
	if changed {
		if err := r.updatePollerFD(fd); err != nil {
			r.logger.Warning().Err(err).Int("fd", fd).Log("poller deregistration failed")
		}
	}
}

// Read reads from a non-blocking descriptor into buf, suspending on
// would-block, until at least minLen bytes have accumulated, the buffer is
// full, EOF is reached, or an error occurs.
//
// minLen == 0 is best-effort single-attempt mode: Read returns after the
// first attempt that actually executes (would-block retries excepted), even
// a zero-length EOF one.
//
// EOF is not an error: Read returns the bytes accumulated so far with a nil
// error, even below minLen. A syscall failure discards the partial count and
// returns (0, err) with err the raw [unix.Errno].
func (r *Reactor) Read(fd int, buf *Buffer, minLen int) (int, error) {
	if getGoroutineID() != r.activeGID.Load() || r.current == nil {
		return 0, ErrNotTaskContext
	}
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	if buf == nil || buf.Remaining() == 0 {
		return 0, nil
	}
	if minLen > buf.Remaining() {
		minLen = buf.Remaining()
	}

	total := 0
	for {
		// The syscall attempt itself never suspends: it is a plain
		// non-blocking read, not routed back through the scheduler.
		n, err := readFD(fd, buf.free())
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				r.WaitForIO(fd, EventRead, 0)
				continue
			default:
				return 0, err
			}
		}
		if n == 0 {
			// EOF terminates accumulation, below minLen or not.
			return total, nil
		}
		buf.advance(n)
		total += n
		if minLen == 0 || total >= minLen || buf.Remaining() == 0 {
			return total, nil
		}
	}
}

// Write writes buf's contents to a non-blocking descriptor, suspending on
// would-block, until at least minLen bytes have been written or the buffer
// is exhausted. Symmetric to [Reactor.Read]: minLen == 0 means one
// best-effort attempt, and a syscall failure discards the partial count and
// returns (0, err).
func (r *Reactor) Write(fd int, buf *Buffer, minLen int) (int, error) {
	if getGoroutineID() != r.activeGID.Load() || r.current == nil {
		return 0, ErrNotTaskContext
	}
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	if buf == nil || buf.Len() == 0 {
		return 0, nil
	}
	data := buf.Bytes()
	if minLen > len(data) {
		minLen = len(data)
	}

	total := 0
	for {
		n, err := writeFD(fd, data[total:])
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				r.WaitForIO(fd, EventWrite, 0)
				continue
			default:
				return 0, err
			}
		}
		total += n
		if minLen == 0 || total >= minLen || total == len(data) {
			return total, nil
		}
	}
}

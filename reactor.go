package reactor

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Wait reasons used by the built-in suspension primitives. An explicit
// [Reactor.Unblock] wakes a task only when the given reason matches the one
// the task blocked with.
const (
	// ReasonSleep is the reason recorded by Sleep.
	ReasonSleep = "sleep"
	// ReasonIO is the reason recorded by a WaitForIO deadline.
	ReasonIO = "io"
)

// Scheduler is the capability set a task-execution context is associated
// with. [Reactor] is the concrete implementation; the interface exists so
// higher-level primitives (locks, joins, dialers) can route their waits
// through an explicitly-registered scheduler instance rather than an ambient
// hook.
type Scheduler interface {
	// Spawn creates a task and runs it synchronously up to its first
	// suspension point or completion before returning its handle.
	Spawn(body func()) *Task
	// Block suspends the current task indefinitely under the given reason.
	Block(reason string) bool
	// BlockUntil suspends the current task until the deadline passes or a
	// matching Unblock arrives, whichever is first.
	BlockUntil(reason string, deadline time.Time) bool
	// Unblock resumes a task previously blocked with the same reason.
	Unblock(reason string, t *Task)
	// Sleep suspends the current task for d; a negative d sleeps
	// indefinitely.
	Sleep(d time.Duration)
	// WaitForIO suspends the current task until fd is ready for one of the
	// requested events, returning the subset actually ready.
	WaitForIO(fd int, events IOEvents, timeout time.Duration) IOEvents
	// Read reads at least minLen bytes into buf, suspending on would-block.
	Read(fd int, buf *Buffer, minLen int) (int, error)
	// Write writes at least minLen bytes from buf, suspending on would-block.
	Write(fd int, buf *Buffer, minLen int) (int, error)
	// Drain blocks until no suspended task remains.
	Drain() error
}

var _ Scheduler = (*Reactor)(nil)

// pendingUnblock is an Unblock issued from outside the scheduler's logical
// thread, queued for the drain loop to apply.
type pendingUnblock struct {
	task   *Task
	reason string
}

// Reactor is a single-threaded cooperative task scheduler. See the package
// documentation for the execution model.
//
// All methods except [Reactor.Unblock] must be called from the scheduler's
// logical thread: the goroutine driving Spawn/Drain, or a currently-running
// task. Unblock is safe to call from any goroutine.
type Reactor struct {
	logger *logiface.Logger[logiface.Event]

	// state is the Idle/Draining/Closed lifecycle machine.
	state reactorState

	// activeGID is the goroutine currently holding the scheduler's logical
	// thread (a running task, or the driver), zero when idle.
	activeGID atomic.Uint64

	// Scheduler-thread-only bookkeeping.
	current *Task
	waits   map[*Task]*timedWait
	timers  waitHeap
	readers map[int]*ioWatch
	writers map[int]*ioWatch
	iomask  map[int]IOEvents // events currently registered with the poller, per fd

	poller poller

	// Wake-up mechanism for Unblock calls from foreign goroutines.
	wakeFd      int
	wakeWriteFd int
	wakeBuf     [8]byte
	pendingMu   sync.Mutex
	pending     []pendingUnblock

	taskIDCounter atomic.Uint64
}

// New creates a reactor with an initialized poller and wake channel.
func New(opts ...Option) (*Reactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		logger:      cfg.logger,
		waits:       make(map[*Task]*timedWait),
		readers:     make(map[int]*ioWatch),
		writers:     make(map[int]*ioWatch),
		iomask:      make(map[int]IOEvents),
		wakeFd:      wakeFd,
		wakeWriteFd: wakeWriteFd,
	}

	if err := r.poller.init(cfg.pollEventBuffer); err != nil {
		_ = closeFD(wakeFd)
		if wakeWriteFd != wakeFd {
			_ = closeFD(wakeWriteFd)
		}
		return nil, err
	}

	// The wake fd stays registered for the reactor's lifetime so a foreign
	// Unblock can interrupt a blocking poll.
	if err := r.poller.addFD(wakeFd, EventRead); err != nil {
		_ = r.poller.close()
		_ = closeFD(wakeFd)
		if wakeWriteFd != wakeFd {
			_ = closeFD(wakeWriteFd)
		}
		return nil, err
	}

	return r, nil
}

// Close releases the poller and wake descriptors. It fails with
// ErrDrainInProgress if a drain is running.
func (r *Reactor) Close() error {
	if !r.state.tryTransition(stateIdle, stateClosed) {
		if r.state.load() == stateClosed {
			return ErrClosed
		}
		return ErrDrainInProgress
	}
	err := r.poller.close()
	_ = closeFD(r.wakeFd)
	if r.wakeWriteFd != r.wakeFd {
		_ = closeFD(r.wakeWriteFd)
	}
	return err
}

// Outstanding returns the outstanding-work counter: wait-registry entries
// plus I/O watch entries. Drain terminates when it reaches zero. Only
// meaningful on the scheduler's logical thread.
func (r *Reactor) Outstanding() int {
	return len(r.waits) + len(r.readers) + len(r.writers)
}

// Spawn creates a new task and immediately runs it synchronously up to its
// first suspension point or completion, then returns its handle. Spawning is
// never lazily deferred: the caller observes side effects of the task's
// initial segment before Spawn returns.
//
// Returns nil if the reactor is closed or Spawn was called from a goroutine
// that does not hold the scheduler's logical thread.
func (r *Reactor) Spawn(body func()) *Task {
	if r.state.load() == stateClosed {
		r.logger.Warning().Log("spawn on closed reactor")
		return nil
	}
	release, ok := r.claimThread()
	if !ok {
		r.logger.Warning().Log("spawn from foreign goroutine while scheduler is busy")
		return nil
	}
	defer release()

	t := &Task{
		r:     r,
		body:  body,
		wake:  make(chan IOEvents),
		yield: make(chan struct{}),
		id:    r.taskIDCounter.Add(1),
		state: TaskCreated,
	}
	go t.run()
	<-t.yield // startup handshake; t.gid is set after this

	r.logger.Debug().Uint64("task", t.id).Log("task spawned")
	r.resumeTask(t, 0)
	return t
}

// Block records the current task in the wait registry as indefinitely
// blocked and suspends it. The task is resumed only by a matching
// [Reactor.Unblock]. Returns false when called from outside a running task.
func (r *Reactor) Block(reason string) bool {
	return r.block(reason, time.Time{})
}

// BlockUntil records the current task in the wait registry with the given
// deadline and suspends it. The drain loop resumes it once the deadline has
// passed; a matching Unblock may resume it earlier. Returns false when called
// from outside a running task.
//
// A zero deadline blocks indefinitely, equivalent to [Reactor.Block].
func (r *Reactor) BlockUntil(reason string, deadline time.Time) bool {
	return r.block(reason, deadline)
}

func (r *Reactor) block(reason string, deadline time.Time) bool {
	if getGoroutineID() != r.activeGID.Load() {
		r.logger.Warning().Str("reason", reason).Log("block from outside a running task")
		return false
	}
	t := r.current
	if t == nil {
		r.logger.Warning().Str("reason", reason).Log("block from outside a running task")
		return false
	}

	r.addWait(t, deadline, reason)
	if deadline.IsZero() {
		t.state = TaskWaitingIndefinite
	} else {
		t.state = TaskWaitingTimer
	}
	r.logger.Debug().
		Uint64("task", t.id).
		Str("reason", reason).
		Str("state", t.state.String()).
		Log("task blocked")

	// Registration and suspension are one atomic step from the task's point
	// of view: control transfers to the driver here and comes back only via
	// the drain loop or an explicit Unblock.
	t.suspend()

	// The waker removes the registry entry before resuming; clear any
	// leftover in case it did not (stale external unblock interleavings).
	r.removeWait(t)
	return true
}

// Unblock resumes the given task if it is currently blocked with the same
// reason. When called on the scheduler's logical thread the task is resumed
// inline; from any other goroutine the wake is queued and the drain loop is
// interrupted via the wake descriptor. A non-matching or stale unblock is
// ignored.
func (r *Reactor) Unblock(reason string, t *Task) {
	if t == nil || t.r != r {
		return
	}

	if gid := r.activeGID.Load(); gid != 0 && gid == getGoroutineID() {
		r.applyUnblock(reason, t)
		return
	}

	r.pendingMu.Lock()
	r.pending = append(r.pending, pendingUnblock{task: t, reason: reason})
	r.pendingMu.Unlock()
	r.submitWakeup()
}

// applyUnblock performs the registry removal and resume for one unblock.
// Scheduler thread only.
func (r *Reactor) applyUnblock(reason string, t *Task) {
	w, ok := r.waits[t]
	if !ok || w.reason != reason {
		r.logger.Debug().
			Uint64("task", t.id).
			Str("reason", reason).
			Log("stale unblock ignored")
		return
	}
	r.removeWait(t)
	r.logger.Debug().Uint64("task", t.id).Str("reason", reason).Log("task unblocked")
	r.resumeTask(t, 0)
}

// Sleep suspends the current task for at least d. A negative d sleeps
// indefinitely: the task is registered as indefinitely blocked (still
// counting toward the outstanding-work counter) and is resumed only by
// Unblock(ReasonSleep, task).
func (r *Reactor) Sleep(d time.Duration) {
	if d < 0 {
		r.Block(ReasonSleep)
		return
	}
	r.BlockUntil(ReasonSleep, time.Now().Add(d))
}

// Drain is the run-to-quiescence barrier. It repeatedly fires due timers
// (earliest deadline first) and polls for I/O readiness, resuming each woken
// task exactly once, until no outstanding work remains. The poll timeout is
// bounded by the nearest pending deadline so a quiet descriptor cannot starve
// a due timer.
//
// A task waiting on an event that will never occur stalls Drain forever;
// that is a caller-side liveness bug, not a condition Drain can detect.
func (r *Reactor) Drain() error {
	// A goroutine that already holds the scheduler's logical thread (a
	// running task, or a drain already underway) cannot start a drain.
	if gid := r.activeGID.Load(); gid != 0 && gid == getGoroutineID() {
		return ErrReentrantDrain
	}
	if !r.state.tryTransition(stateIdle, stateDraining) {
		if r.state.load() == stateClosed {
			return ErrClosed
		}
		return ErrDrainInProgress
	}
	defer r.state.store(stateIdle)

	r.activeGID.Store(getGoroutineID())
	defer r.activeGID.Store(0)

	r.logger.Debug().Int("outstanding", r.Outstanding()).Log("drain started")

	for r.Outstanding() > 0 {
		r.fireDueTimers()
		r.processPending()
		if r.Outstanding() == 0 {
			break
		}

		// The poll also serves as the timed sleep when no descriptor is
		// watched: the wake fd is always registered, so a foreign Unblock
		// interrupts it.
		if _, err := r.poller.wait(r.pollTimeoutMs(), r.dispatch); err != nil {
			r.logger.Err().Err(err).Log("readiness poll failed")
			return fmt.Errorf("reactor: poll: %w", err)
		}
	}

	r.logger.Debug().Log("drain complete")
	return nil
}

// dispatch handles one readiness result from the poll. A descriptor reported
// ready with no registered waiter is ignored.
func (r *Reactor) dispatch(fd int, ev IOEvents) {
	if fd == r.wakeFd {
		r.drainWakeupPipe()
		r.processPending()
		return
	}

	// Error and hangup conditions wake both directions so a blocked adapter
	// can retry the syscall and observe the real failure (or EOF).
	var rw, ww *ioWatch
	if w, ok := r.readers[fd]; ok && ev&(EventRead|EventPriority|EventError|EventHangup) != 0 {
		rw = w
	}
	if w, ok := r.writers[fd]; ok && ev&(EventWrite|EventError|EventHangup) != 0 {
		ww = w
	}
	if rw == nil && ww == nil {
		r.logger.Debug().Int("fd", fd).Log("readiness with no waiter ignored")
		return
	}

	if rw != nil {
		delete(r.readers, fd)
	}
	if ww != nil {
		delete(r.writers, fd)
	}
	if err := r.updatePollerFD(fd); err != nil {
		r.logger.Warning().Err(err).Int("fd", fd).Log("poller deregistration failed")
	}

	if rw != nil && ww != nil && rw.task == ww.task {
		r.removeWait(rw.task)
		r.resumeTask(rw.task, ev)
		return
	}
	if rw != nil {
		r.removeWait(rw.task)
		r.resumeTask(rw.task, ev)
	}
	if ww != nil {
		r.removeWait(ww.task)
		r.resumeTask(ww.task, ev)
	}
}

// processPending applies unblocks queued by foreign goroutines. Scheduler
// thread only.
func (r *Reactor) processPending() {
	for {
		r.pendingMu.Lock()
		batch := r.pending
		r.pending = nil
		r.pendingMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, p := range batch {
			r.applyUnblock(p.reason, p.task)
		}
	}
}

// resumeTask transfers control to t until it suspends again or finishes.
// Exactly one of {driver, task} runs at any instant: the caller parks on the
// yield channel for the duration.
func (r *Reactor) resumeTask(t *Task, ev IOEvents) {
	callerGID := getGoroutineID()
	prev := r.current
	r.current = t
	t.state = TaskRunning
	r.activeGID.Store(t.gid)

	t.wake <- ev
	<-t.yield

	r.current = prev
	r.activeGID.Store(callerGID)

	if t.state == TaskDone {
		r.logger.Debug().Uint64("task", t.id).Log("task done")
	}
}

// claimThread acquires the scheduler's logical thread for the calling
// goroutine, or recognizes that it already holds it (a running task, or the
// drain loop's goroutine). The second return is false when another goroutine
// holds the thread.
func (r *Reactor) claimThread() (release func(), ok bool) {
	gid := getGoroutineID()
	if r.activeGID.Load() == gid {
		return func() {}, true
	}
	if !r.activeGID.CompareAndSwap(0, gid) {
		return nil, false
	}
	return func() { r.activeGID.Store(0) }, true
}

// submitWakeup writes to the wake descriptor. A full pipe means a wake is
// already pending, so write errors are ignored.
func (r *Reactor) submitWakeup() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, _ = writeFD(r.wakeWriteFd, buf[:])
}

// drainWakeupPipe empties the wake descriptor.
func (r *Reactor) drainWakeupPipe() {
	for {
		if _, err := readFD(r.wakeFd, r.wakeBuf[:]); err != nil {
			break
		}
	}
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

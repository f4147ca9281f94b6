package reactor

// Task is a suspendable, resumable unit of execution owned by exactly one
// [Reactor]. Exactly one task is running at any instant; all others are
// either parked at a suspension point or done.
//
// A Task is backed by a goroutine parked on an unbuffered handoff channel.
// The goroutine runs only between a resume and the next suspension point, so
// task bodies never execute concurrently with each other or with the drain
// loop.
type Task struct {
	r    *Reactor
	body func()

	// wake carries the resume signal, with the ready I/O events observed by
	// the poll (zero for timer and explicit wakes).
	wake chan IOEvents
	// yield signals the driver that the task has suspended or finished.
	yield chan struct{}

	id  uint64
	gid uint64 // goroutine ID of the task body

	// state is touched only while holding the scheduler's logical thread.
	state TaskState
}

// State returns the task's current state. It is only meaningful when read
// from the reactor's owner goroutine or from a running task.
func (t *Task) State() TaskState {
	return t.state
}

// Done reports whether the task's body has returned.
func (t *Task) Done() bool {
	return t.state == TaskDone
}

// Scheduler returns the reactor this task is associated with.
func (t *Task) Scheduler() Scheduler {
	return t.r
}

// run is the task goroutine body. It performs a startup handshake (so the
// spawner observes the goroutine ID before the first resume), waits for the
// first resume, runs the body, then signals completion.
func (t *Task) run() {
	t.gid = getGoroutineID()
	t.yield <- struct{}{}
	<-t.wake
	t.body()
	t.state = TaskDone
	t.yield <- struct{}{}
}

// suspend parks the task until the next resume, returning the ready events
// reported by the waker. Must be called on the task's own goroutine.
func (t *Task) suspend() IOEvents {
	t.yield <- struct{}{}
	return <-t.wake
}

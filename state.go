package reactor

import (
	"sync/atomic"
)

// TaskState represents the current state of a task.
//
// State Machine:
//
//	TaskCreated → TaskRunning                [Spawn()]
//	TaskRunning → TaskWaitingTimer           [BlockUntil(), Sleep(d)]
//	TaskRunning → TaskWaitingIndefinite      [Block(), Sleep(d < 0)]
//	TaskRunning → TaskWaitingReadable        [WaitForIO() with read interest]
//	TaskRunning → TaskWaitingWritable        [WaitForIO() with write-only interest]
//	TaskWaiting* → TaskRunning               [timer sweep, readiness poll, Unblock()]
//	TaskRunning → TaskDone                   [body returns]
//	TaskDone → (terminal)
//
// Transitions happen only via the suspension primitives; a task never yields
// control at an ambient point.
type TaskState uint32

const (
	// TaskCreated indicates the task exists but has not yet run its first segment.
	TaskCreated TaskState = iota
	// TaskRunning indicates the task is the one currently executing.
	TaskRunning
	// TaskWaitingTimer indicates the task is suspended until a deadline.
	TaskWaitingTimer
	// TaskWaitingReadable indicates the task is suspended until a descriptor
	// becomes readable (or until its I/O wait deadline, if one was given).
	TaskWaitingReadable
	// TaskWaitingWritable indicates the task is suspended until a descriptor
	// becomes writable (or until its I/O wait deadline, if one was given).
	TaskWaitingWritable
	// TaskWaitingIndefinite indicates the task is suspended with no wake
	// condition and must be woken by an explicit Unblock.
	TaskWaitingIndefinite
	// TaskDone indicates the task's body has returned.
	TaskDone
)

// String returns a human-readable representation of the state.
func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "Created"
	case TaskRunning:
		return "Running"
	case TaskWaitingTimer:
		return "WaitingTimer"
	case TaskWaitingReadable:
		return "WaitingReadable"
	case TaskWaitingWritable:
		return "WaitingWritable"
	case TaskWaitingIndefinite:
		return "WaitingIndefinite"
	case TaskDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// reactorState is the reactor lifecycle state machine.
//
// Transition Rules:
//   - Use tryTransition (CAS) for the Idle ↔ Draining round trip
//   - stateClosed is terminal
type reactorState struct {
	v atomic.Uint32
}

const (
	stateIdle uint32 = iota
	stateDraining
	stateClosed
)

func (s *reactorState) load() uint32 {
	return s.v.Load()
}

func (s *reactorState) store(state uint32) {
	s.v.Store(state)
}

func (s *reactorState) tryTransition(from, to uint32) bool {
	return s.v.CompareAndSwap(from, to)
}

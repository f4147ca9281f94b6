package reactor

import "errors"

// Standard errors.
var (
	// ErrClosed is returned when operations are attempted on a closed reactor.
	ErrClosed = errors.New("reactor: reactor is closed")

	// ErrDrainInProgress is returned when Drain() or Close() is called while
	// another goroutine is already draining.
	ErrDrainInProgress = errors.New("reactor: drain already in progress")

	// ErrReentrantDrain is returned when Drain() is called from within a task.
	ErrReentrantDrain = errors.New("reactor: cannot call Drain() from within a task")

	// ErrNotTaskContext is returned by the I/O adapters when called from
	// outside a running task.
	ErrNotTaskContext = errors.New("reactor: not called from a running task")

	// ErrFDOutOfRange is returned for negative file descriptors.
	ErrFDOutOfRange = errors.New("reactor: fd out of range")

	// ErrPollerClosed is returned when the underlying poller has been closed.
	ErrPollerClosed = errors.New("reactor: poller closed")
)

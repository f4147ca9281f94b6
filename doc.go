// Package reactor provides a single-threaded cooperative task scheduler for
// Go: a run-to-quiescence reactor that suspends lightweight tasks at explicit
// points, tracks why each one is suspended (timer deadline, I/O readiness, or
// indefinite block), and resumes them in response to timer expiry or I/O
// readiness discovered through a multiplexed readiness poll.
//
// # Architecture
//
// A [Reactor] owns three bookkeeping structures: a wait registry mapping each
// suspended [Task] to its wake condition (a deadline, or nothing for an
// indefinite block), and a pair of I/O watch sets mapping each watched file
// descriptor to the task waiting for it to become readable or writable. The
// [Reactor.Drain] loop is the only code that turns a recorded wait back into
// forward progress: it repeatedly fires due timers (earliest deadline first)
// and polls for I/O readiness until no suspended task remains.
//
// Layered on top are non-blocking I/O adapters, [Reactor.Read] and
// [Reactor.Write], which perform one non-blocking attempt at a time and on a
// would-block result suspend the calling task via [Reactor.WaitForIO] until
// the descriptor is reported ready, retrying until the requested minimum
// length is satisfied, EOF is reached, or an error occurs.
//
// # Execution Model
//
// Exactly one task executes at any instant. Scheduling is cooperative:
// control transfers only at explicit suspension points ([Reactor.Block],
// [Reactor.Sleep], [Reactor.WaitForIO], and internally within the read/write
// adapters). [Reactor.Spawn] runs a new task synchronously up to its first
// suspension point or completion before returning, so the caller observes the
// side effects of the task's initial segment.
//
// Tasks are modeled as goroutines parked on an unbuffered handoff channel;
// at most one of {the drain loop, a running task} holds the scheduler's
// logical thread at a time, so the registries need no locking. The one
// concession to the outside world is [Reactor.Unblock]: when invoked from a
// goroutine other than the scheduler's logical thread it enqueues the wake
// and interrupts any in-progress poll through an always-registered wake
// descriptor (eventfd on Linux, self-pipe on Darwin).
//
// # Platform Support
//
// Readiness multiplexing uses platform-native mechanisms:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//
// # Usage
//
//	r, err := reactor.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	r.Spawn(func() {
//		r.Sleep(50 * time.Millisecond)
//		fmt.Println("woke up")
//	})
//
//	if err := r.Drain(); err != nil {
//		log.Fatal(err)
//	}
//
// A Reactor instance must not be shared across independently-driven threads;
// each thread needing this facility must own its own instance.
package reactor

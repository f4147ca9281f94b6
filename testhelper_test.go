//go:build linux || darwin

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// newTestReactor creates a reactor and registers cleanup.
func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatal("New failed:", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// testPipe creates a non-blocking pipe suitable for the read/write adapters.
// Returns the read end and the write end.
func testPipe(t *testing.T) (rfd, wfd int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatal("pipe failed:", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatal("set nonblock failed:", err)
		}
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// testSocketpair creates a non-blocking Unix stream socket pair.
func testSocketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal("socketpair failed:", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatal("set nonblock failed:", err)
		}
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// rawWrite writes all of p to fd, retrying on would-block, bypassing the
// reactor entirely.
func rawWrite(t *testing.T, fd int, p []byte) {
	t.Helper()
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if err == unix.EAGAIN || err == unix.EINTR {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Error("raw write failed:", err)
			return
		}
		p = p[n:]
	}
}

// drainDone runs Drain in a goroutine and returns its completion channel.
func drainDone(r *Reactor) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- r.Drain() }()
	return ch
}

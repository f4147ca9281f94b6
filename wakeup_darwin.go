//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates the wake channel used to interrupt a blocking poll.
// Darwin has no eventfd, so the channel is a non-blocking close-on-exec
// pipe: the read end is watched by the poller, the write end receives the
// wake bytes.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return 0, 0, err
		}
	}
	return fds[0], fds[1], nil
}

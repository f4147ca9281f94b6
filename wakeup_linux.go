//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates the wake channel used to interrupt a blocking poll.
// On Linux a single non-blocking eventfd serves as both ends.
func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

//go:build unix

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Write performs one non-blocking write(2) on fd. It retries on EINTR and
// maps EAGAIN to ErrWouldBlock.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		default:
			return max(n, 0), err
		}
	}
}

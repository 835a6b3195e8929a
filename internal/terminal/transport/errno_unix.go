//go:build !windows

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isResourceExhausted(err error) bool {
	return errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOMEM) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.ENOSPC)
}

// isClosedRead reports whether a read error means the other side is gone
// for good. Linux returns EIO from a PTY master once the slave is closed.
func isClosedRead(err error) bool {
	return errors.Is(err, unix.EIO)
}

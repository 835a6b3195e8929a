//go:build windows

package transport

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isResourceExhausted(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY) ||
		errors.Is(err, windows.ERROR_TOO_MANY_OPEN_FILES) ||
		errors.Is(err, windows.ERROR_NO_SYSTEM_RESOURCES) ||
		errors.Is(err, windows.ERROR_OUTOFMEMORY)
}

func isClosedRead(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE)
}

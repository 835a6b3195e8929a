package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrCreation matches every CreationError via errors.Is.
var ErrCreation = errors.New("transport creation failed")

// ErrNotStarted is returned by Read and Write before Start succeeded.
var ErrNotStarted = errors.New("transport not started")

// Reason classifies why a transport could not be allocated.
type Reason string

const (
	ReasonResources   Reason = "out_of_resources"
	ReasonUnsupported Reason = "unsupported_platform"
	ReasonUnknown     Reason = "unknown"
)

// CreationError reports a failure to allocate the OS primitive behind a
// transport. Both reasons are fatal to session start.
type CreationError struct {
	Kind   Kind
	Reason Reason
	Err    error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s transport (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// Is reports ErrCreation as a match so callers need not know the type.
func (e *CreationError) Is(target error) bool { return target == ErrCreation }

func creationError(kind Kind, err error) *CreationError {
	reason := ReasonUnknown
	if isResourceExhausted(err) {
		reason = ReasonResources
	}
	return &CreationError{Kind: kind, Reason: reason, Err: err}
}

// IsClosed reports whether a Read error means the child side is gone and
// no further output will arrive.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || isClosedRead(err)
}

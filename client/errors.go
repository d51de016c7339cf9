package client

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is attempted in a
	// state that does not permit it, such as starting a download
	// before connecting.
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrNotConnected is the reason carried by an error event when a
	// hard receive failure ends the connection.
	ErrNotConnected = errors.New("transport not connected")

	// ErrConnectionReset is the reason carried by an error event when
	// the peer closes the connection, or a reconnect fails.
	ErrConnectionReset = errors.New("connection reset")

	// ErrTotalSizeChanged is the reason carried by an error event when
	// the server reports a different total image size mid-download.
	// This is a protocol violation, not a retryable fault.
	ErrTotalSizeChanged = errors.New("total firmware size changed during download")

	// ErrChecksumMismatch is wrapped by [Error] when the completed
	// image digest does not match the expected value.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Error pairs a sentinel with detail about the specific failure.
type Error struct {
	Err    error
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

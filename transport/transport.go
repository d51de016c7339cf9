package transport

import (
	"context"
	"errors"
)

// ErrWouldBlock is returned by [Conn.Receive] when no data is queued on
// the connection. It is not a failure; try again later.
var ErrWouldBlock = errors.New("transport: receive would block")

// Conn is a stream connection to a firmware server.
type Conn interface {
	// Send writes p to the connection and returns the number of bytes
	// written.
	Send(p []byte) (int, error)

	// Receive reads up to len(p) bytes. With peek set, the data is
	// left queued and redelivered by subsequent calls; without it, the
	// data is consumed. Receive returns ErrWouldBlock when nothing is
	// queued, and 0 with a nil error when the peer has closed the
	// connection.
	Receive(p []byte, peek bool) (int, error)

	// Close tears the connection down.
	Close() error
}

// Dialer opens connections to a named host. Name resolution and
// address-family selection are the dialer's responsibility.
type Dialer interface {
	Dial(ctx context.Context, host string) (Conn, error)
}

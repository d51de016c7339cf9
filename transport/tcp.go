package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// defaultPollTimeout bounds a single receive attempt so the caller's
// advance loop keeps control of the socket.
const defaultPollTimeout = 100 * time.Millisecond

// TCPDialer is the default [Dialer], producing plain TCP connections.
// The zero value is ready to use.
type TCPDialer struct {
	// Port is used when the host string carries no explicit port.
	// Defaults to "80".
	Port string

	// PollTimeout bounds each receive attempt before the connection
	// reports ErrWouldBlock. Defaults to 100ms.
	PollTimeout time.Duration

	// NetDialer performs the underlying dial, allowing custom
	// resolvers, local addresses, or connect timeouts.
	NetDialer net.Dialer
}

// Dial resolves host and opens a TCP connection to it.
func (d *TCPDialer) Dial(ctx context.Context, host string) (Conn, error) {
	if host == "" {
		return nil, errors.New("host must not be empty")
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := d.Port
		if port == "" {
			port = "80"
		}
		addr = net.JoinHostPort(host, port)
	}

	nc, err := d.NetDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	poll := d.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}

	return &tcpConn{conn: nc, poll: poll}, nil
}

// tcpConn wraps a net.Conn with peek emulation: peeked bytes are kept
// in a stash and handed back until consumed by a destructive receive.
type tcpConn struct {
	conn  net.Conn
	poll  time.Duration
	stash []byte
	eof   bool
}

func (c *tcpConn) Send(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *tcpConn) Receive(p []byte, peek bool) (int, error) {
	if !peek {
		if len(c.stash) > 0 {
			n := copy(p, c.stash)
			c.stash = c.stash[n:]
			return n, nil
		}
		if c.eof {
			return 0, nil
		}
		return c.read(p)
	}

	// Pull whatever is ready into the stash, then hand out a copy.
	if !c.eof && len(c.stash) < len(p) {
		tmp := make([]byte, len(p)-len(c.stash))
		n, err := c.read(tmp)
		if n > 0 {
			c.stash = append(c.stash, tmp[:n]...)
		}
		if err != nil && len(c.stash) == 0 {
			if errors.Is(err, ErrWouldBlock) {
				return 0, ErrWouldBlock
			}
			return 0, err
		}
	}

	if len(c.stash) == 0 && c.eof {
		return 0, nil
	}

	return copy(p, c.stash), nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// read performs one deadline-bounded read, mapping deadline expiry to
// ErrWouldBlock and orderly close to a zero count.
func (c *tcpConn) read(p []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.poll)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	n, err := c.conn.Read(p)
	if err != nil {
		var nerr net.Error
		switch {
		case errors.As(err, &nerr) && nerr.Timeout():
			if n == 0 {
				return 0, ErrWouldBlock
			}
			return n, nil
		case errors.Is(err, io.EOF):
			c.eof = true
			return n, nil
		default:
			return n, err
		}
	}

	return n, nil
}

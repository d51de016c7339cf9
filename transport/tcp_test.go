package transport_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/adamwoolhether/dfu/transport"
)

// startServer runs a loopback listener whose single accepted connection
// is handled by serve. It returns the address to dial.
func startServer(t *testing.T, serve func(net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()

	return ln.Addr().String()
}

// receive retries peeked reads until the expected byte count is stashed
// or the deadline passes, since the server's reply may not have landed
// on the first poll.
func receive(t *testing.T, conn transport.Conn, want int, peek bool) []byte {
	t.Helper()

	buf := make([]byte, want)
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := conn.Receive(buf, peek)
		switch {
		case errors.Is(err, transport.ErrWouldBlock):
		case err != nil:
			t.Fatalf("receive failed: %v", err)
		case n == want:
			return buf
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d bytes", want)
		}
	}
}

func TestTCPConn_PeekThenConsume(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()

		req := make([]byte, 5)
		if _, err := conn.Read(req); err != nil {
			return
		}
		conn.Write([]byte("granted"))
	})

	dialer := transport.TCPDialer{PollTimeout: 20 * time.Millisecond}
	conn, err := dialer.Dial(context.Background(), addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Send([]byte("hello")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Peeking twice yields the same bytes without consuming them.
	first := receive(t, conn, 7, true)
	second := receive(t, conn, 7, true)
	if string(first) != "granted" || string(second) != "granted" {
		t.Fatalf("peeks = %q, %q, want %q twice", first, second, "granted")
	}

	// A destructive receive consumes the stash.
	got := receive(t, conn, 7, false)
	if string(got) != "granted" {
		t.Fatalf("consume = %q, want %q", got, "granted")
	}
}

func TestTCPConn_QuietSocketWouldBlock(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		// Hold the connection open without writing.
		buf := make([]byte, 1)
		conn.Read(buf)
		conn.Close()
	})

	dialer := transport.TCPDialer{PollTimeout: 20 * time.Millisecond}
	conn, err := dialer.Dial(context.Background(), addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 16)
	for _, peek := range []bool{true, false} {
		if _, err := conn.Receive(buf, peek); !errors.Is(err, transport.ErrWouldBlock) {
			t.Errorf("peek=%v: expected ErrWouldBlock, got: %v", peek, err)
		}
	}
}

func TestTCPConn_PeerCloseReportsZero(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		conn.Close()
	})

	dialer := transport.TCPDialer{PollTimeout: 20 * time.Millisecond}
	conn, err := dialer.Dial(context.Background(), addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	// The close races the first read attempt; an early poll may still
	// report a would-block before the FIN is observed.
	buf := make([]byte, 16)
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := conn.Receive(buf, true)
		if err == nil && n == 0 {
			return
		}
		if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
			t.Fatalf("expected a zero-count receive, got: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the peer close to surface")
		}
	}
}

func TestTCPDialer_DefaultPort(t *testing.T) {
	dialer := transport.TCPDialer{
		Port:      "1", // discard port, almost certainly closed
		NetDialer: net.Dialer{Timeout: 100 * time.Millisecond},
	}

	// A bare host must be completed with the configured port; the dial
	// itself is expected to fail fast.
	if _, err := dialer.Dial(context.Background(), "127.0.0.1"); err == nil {
		t.Error("expected dial to a closed port to fail")
	}

	if _, err := dialer.Dial(context.Background(), ""); err == nil {
		t.Error("expected dial with an empty host to fail")
	}
}

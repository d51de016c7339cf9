// Package transport defines the stream-socket contract consumed by the
// download session, along with the default TCP implementation.
//
// The session core never dials or resolves names itself; it depends on
// a [Dialer] to produce a [Conn] for a host string. [TCPDialer] is the
// stock implementation: DNS resolution via the net package, port 80
// unless the host carries an explicit port, and receive attempts
// bounded by a short poll deadline so that a quiet socket reports
// [ErrWouldBlock] instead of blocking the caller's loop.
//
// Receive supports peeking: peeked bytes stay queued and are
// redelivered until a destructive receive consumes them. The session
// relies on this to leave a partially arrived response on the wire
// between advance calls.
package transport

// Package client implements the firmware download session: a
// single-threaded state machine that fetches an image from an HTTP
// server in bounded fragments using byte-range requests, delivering
// each fragment to an application handler for flashing.
//
// # Building a Session
//
// Use [Build] to create a [Session] with functional options:
//
//	s, err := client.Build("fw.example.com", "/app.bin", handler,
//		client.WithFragmentSize(2048),
//		client.WithLogger(logger),
//	)
//
// # Driving a Download
//
// The session is cooperative: the caller owns the event loop. Connect,
// start the download, then advance the session until a terminal event
// fires:
//
//	if err := s.Connect(ctx); err != nil { ... }
//	if err := s.Download(ctx); err != nil { ... }
//	for s.Status() == client.StatusInProgress {
//		if err := s.Process(ctx); err != nil {
//			break
//		}
//	}
//	s.Disconnect()
//
// Process performs at most one receive attempt per call and never
// loops internally; a quiet socket is simply a no-op. There are no
// timeouts in the core — a server that never answers parks the session
// in StatusInProgress, and timeout policy belongs to the transport or
// the caller.
//
// # Events
//
// The handler receives [EventFragment] for every delivered fragment,
// [EventDone] on completion, and [EventError] on fatal transport or
// protocol failures. Returning a non-nil error from the handler rejects
// the event: a rejected fragment halts the download, a rejected
// completion rolls back the final fragment and requests the same byte
// range again. The fragment slice is a view into the session's response
// buffer and is only valid until the handler returns.
//
// # Resuming
//
// Disconnecting mid-transfer is safe. Reconnect and call Download
// again: the next request starts at the last acknowledged offset. To
// resume across process restarts, persist the downloaded byte count
// yourself and seed a fresh session with [WithResumeOffset].
//
// # Errors
//
// Fatal mid-download failures (peer close, hard socket errors, a total
// image size that changes between responses) surface both as an
// EventError and as the return value of Process. They end the current
// connection: disconnect, reconnect, and call Download to resume. The
// core retries nothing on its own; retry counts and backoff are the
// caller's policy.
package client

// Package protocol implements the HTTP/1.1 framing used for ranged
// firmware downloads: formatting GET requests with a Range header into
// a fixed-capacity buffer, and classifying partially received responses.
//
// # Requests
//
// [BuildRangeRequest] writes a ranged GET into the caller's request
// buffer and fails when the buffer is too small, which is a
// configuration error rather than a runtime transient:
//
//	n, err := protocol.BuildRangeRequest(buf, "fw.example.com", "/app.bin", 0, 2048)
//	// GET /app.bin HTTP/1.1
//	// Host: fw.example.com
//	// Connection: keep-alive
//	// Range: bytes=0-2047
//
// # Responses
//
// [Parse] consumes the raw bytes received so far and reports whether a
// complete fragment body is present. It extracts the total image size
// from Content-Range, the fragment size from Content-Length, and
// whether the server announced Connection: close. A response is only
// considered deliverable when its payload is exactly the configured
// fragment window, or exactly the final remainder of the image; any
// other size classifies as not ready and the caller waits for more
// data.
//
// Parse is stateless. The caller owns the receive buffer and the
// download counters that feed the final-fragment rule.
package protocol

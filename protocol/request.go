package protocol

import "fmt"

// requestFormat is the exact wire layout of a fragment request,
// including header order. The range end is inclusive.
const requestFormat = "GET %s HTTP/1.1\r\n" +
	"Host: %s\r\n" +
	"Connection: keep-alive\r\n" +
	"Range: bytes=%d-%d\r\n\r\n"

// BuildRangeRequest formats an HTTP/1.1 GET for the fragment window
// [offset, offset+window) into buf and returns the number of bytes
// written. buf is the session's fixed-capacity request buffer; if the
// formatted request does not fit, BuildRangeRequest returns
// [ErrRequestTooLarge].
func BuildRangeRequest(buf []byte, host, resource string, offset int64, window int) (int, error) {
	req := fmt.Sprintf(requestFormat, resource, host, offset, offset+int64(window)-1)
	if len(req) > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrRequestTooLarge, len(req), len(buf))
	}

	return copy(buf, req), nil
}

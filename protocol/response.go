package protocol

import (
	"bytes"
	"strings"
)

// State classifies how much of a fragment response has arrived.
type State int

const (
	// Incomplete indicates the required headers are not fully present,
	// or the advertised payload size matches neither the fragment
	// window nor the final remainder of the image. Wait for more data.
	Incomplete State = iota

	// PayloadPending indicates the headers parsed but the body bytes
	// received so far fall short of Content-Length. Wait for more data.
	PayloadPending

	// Ready indicates the full fragment body is present in the buffer.
	Ready
)

func (s State) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case PayloadPending:
		return "payload-pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Result describes a parsed response. PayloadOffset and PayloadSize
// locate the fragment body within the receive buffer and are meaningful
// once State is Ready. TotalSize is zero when the server did not report
// a total.
type Result struct {
	State           State
	PayloadOffset   int
	PayloadSize     int
	RangeStart      int64
	TotalSize       int64
	ConnectionClose bool
}

var crlf = []byte("\r\n")

// Parse classifies the first received bytes of a fragment response.
// buf holds exactly the bytes received so far. window is the configured
// maximum fragment size; downloaded and total are the session's byte
// counters, needed for the final-fragment rule: a payload is only
// deliverable when it is exactly window bytes, or exactly the last
// (possibly short) piece of the image. Anything else waits.
func Parse(buf []byte, window int, downloaded, total int64) Result {
	var res Result

	rangeVal, ok := headerValue(buf, "Content-Range")
	if !ok || !strings.HasPrefix(rangeVal, "bytes") {
		return res
	}
	res.RangeStart, res.TotalSize = parseContentRange(rangeVal)

	lengthVal, ok := headerValue(buf, "Content-Length")
	if !ok {
		return res
	}
	res.PayloadSize = int(leadingInt(lengthVal))

	// The response's own total supersedes the session total for the
	// final-fragment rule; a mismatch between the two is the caller's
	// problem to report.
	if res.TotalSize != 0 {
		total = res.TotalSize
	}

	if res.PayloadSize != window && downloaded+int64(res.PayloadSize) != total {
		return res
	}

	sep := bytes.Index(buf, []byte("\r\n\r\n"))
	if sep < 0 {
		res.State = PayloadPending
		return res
	}
	res.PayloadOffset = sep + 4

	if len(buf)-res.PayloadOffset != res.PayloadSize {
		res.State = PayloadPending
		return res
	}

	if connVal, ok := headerValue(buf, "Connection"); ok && strings.Contains(connVal, "close") {
		res.ConnectionClose = true
	}

	res.State = Ready
	return res
}

// headerValue scans response lines for the first occurrence of name and
// returns its value. Scanning stops at the blank line separating the
// headers from the body, so payload bytes can never match.
func headerValue(buf []byte, name string) (string, bool) {
	rest := buf
	for len(rest) > 0 {
		line := rest
		if i := bytes.Index(rest, crlf); i >= 0 {
			line = rest[:i]
			rest = rest[i+2:]
		} else {
			rest = nil
		}

		if len(line) == 0 {
			break
		}

		if k, v, ok := bytes.Cut(line, []byte(": ")); ok && string(k) == name {
			return string(v), true
		}
	}

	return "", false
}

// parseContentRange extracts the range start and the total image size
// from a value of the form "bytes <start>-<end>/<total>". A total of
// "*" yields zero, meaning unknown.
func parseContentRange(v string) (start, total int64) {
	v = strings.TrimPrefix(v, "bytes")
	if i := strings.IndexByte(v, ' '); i >= 0 {
		start = leadingInt(v[i+1:])
	}
	if i := strings.IndexByte(v, '/'); i >= 0 {
		total = leadingInt(v[i+1:])
	}

	return start, total
}

// leadingInt parses the leading decimal digits of s after optional
// whitespace and sign. Non-numeric input yields zero.
func leadingInt(s string) int64 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}

	var n int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}

	return n
}

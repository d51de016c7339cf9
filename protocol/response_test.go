package protocol_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/dfu/protocol"
)

// response assembles a partial-content response carrying payload for
// the inclusive range [start, start+len(payload)-1] of a total-byte
// image.
func response(start, total int64, payload string, connClose bool) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 206 Partial Content\r\n")
	b.WriteString("Content-Type: application/octet-stream\r\n")
	if connClose {
		b.WriteString("Connection: close\r\n")
	}
	fmt.Fprintf(&b, "Content-Range: bytes %d-%d/%d\r\n", start, start+int64(len(payload))-1, total)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	b.WriteString("\r\n")
	b.WriteString(payload)

	return []byte(b.String())
}

func TestParse_Ready(t *testing.T) {
	payload := strings.Repeat("x", 256)
	buf := response(0, 1024, payload, false)

	got := protocol.Parse(buf, 256, 0, -1)

	want := protocol.Result{
		State:         protocol.Ready,
		PayloadOffset: len(buf) - len(payload),
		PayloadSize:   256,
		RangeStart:    0,
		TotalSize:     1024,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_MissingContentRange(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 256\r\n\r\n" + strings.Repeat("x", 256))

	got := protocol.Parse(buf, 256, 0, -1)
	if got.State != protocol.Incomplete {
		t.Errorf("expected Incomplete, got %v", got.State)
	}
}

func TestParse_ContentRangeWithoutBytesUnit(t *testing.T) {
	buf := []byte("HTTP/1.1 206 Partial Content\r\n" +
		"Content-Range: items 0-255/1024\r\n" +
		"Content-Length: 256\r\n\r\n" + strings.Repeat("x", 256))

	got := protocol.Parse(buf, 256, 0, -1)
	if got.State != protocol.Incomplete {
		t.Errorf("expected Incomplete, got %v", got.State)
	}
}

func TestParse_MissingContentLength(t *testing.T) {
	buf := []byte("HTTP/1.1 206 Partial Content\r\n" +
		"Content-Range: bytes 0-255/1024\r\n\r\n" + strings.Repeat("x", 256))

	got := protocol.Parse(buf, 256, 0, -1)
	if got.State != protocol.Incomplete {
		t.Errorf("expected Incomplete, got %v", got.State)
	}
}

func TestParse_TruncatedHeaders(t *testing.T) {
	full := response(0, 1024, strings.Repeat("x", 256), false)

	// Cut mid-way through the header block.
	got := protocol.Parse(full[:40], 256, 0, -1)
	if got.State != protocol.Incomplete {
		t.Errorf("expected Incomplete, got %v", got.State)
	}
}

func TestParse_SplitAcrossReads(t *testing.T) {
	payload := strings.Repeat("x", 256)
	full := response(0, 1024, payload, false)
	headerLen := len(full) - len(payload)

	// First read: headers only.
	first := protocol.Parse(full[:headerLen], 256, 0, -1)
	if first.State != protocol.PayloadPending {
		t.Fatalf("headers only: expected PayloadPending, got %v", first.State)
	}
	if first.PayloadSize != 256 {
		t.Errorf("headers only: PayloadSize = %d, want 256", first.PayloadSize)
	}

	// Second read: everything.
	second := protocol.Parse(full, 256, 0, -1)
	if second.State != protocol.Ready {
		t.Errorf("full buffer: expected Ready, got %v", second.State)
	}
}

func TestParse_PartialBody(t *testing.T) {
	payload := strings.Repeat("x", 256)
	full := response(0, 1024, payload, false)

	got := protocol.Parse(full[:len(full)-100], 256, 0, -1)
	if got.State != protocol.PayloadPending {
		t.Errorf("expected PayloadPending, got %v", got.State)
	}
}

// A buffer holding more bytes than Content-Length advertises is not
// delivered either; the parser insists on an exact match.
func TestParse_OverfullBufferWaits(t *testing.T) {
	payload := strings.Repeat("x", 256)
	buf := append(response(0, 1024, payload, false), "extra"...)

	got := protocol.Parse(buf, 256, 0, -1)
	if got.State != protocol.PayloadPending {
		t.Errorf("expected PayloadPending, got %v", got.State)
	}
}

// A payload that is neither the fragment window nor the final remainder
// never becomes deliverable, even with the full body present.
func TestParse_UnexpectedPayloadSizeStalls(t *testing.T) {
	payload := strings.Repeat("x", 100)
	buf := response(0, 1024, payload, false)

	got := protocol.Parse(buf, 256, 0, 1024)
	if got.State != protocol.Incomplete {
		t.Errorf("expected Incomplete, got %v", got.State)
	}
}

func TestParse_FinalShortFragment(t *testing.T) {
	payload := strings.Repeat("x", 100)
	buf := response(768, 868, payload, false)

	got := protocol.Parse(buf, 256, 768, 868)
	if got.State != protocol.Ready {
		t.Errorf("expected Ready, got %v", got.State)
	}
	if got.PayloadSize != 100 {
		t.Errorf("PayloadSize = %d, want 100", got.PayloadSize)
	}
}

func TestParse_ConnectionClose(t *testing.T) {
	payload := strings.Repeat("x", 256)

	got := protocol.Parse(response(0, 1024, payload, true), 256, 0, -1)
	if got.State != protocol.Ready {
		t.Fatalf("expected Ready, got %v", got.State)
	}
	if !got.ConnectionClose {
		t.Error("expected ConnectionClose to be set")
	}

	got = protocol.Parse(response(0, 1024, payload, false), 256, 0, -1)
	if got.ConnectionClose {
		t.Error("expected ConnectionClose to be unset")
	}
}

func TestParse_UnknownTotal(t *testing.T) {
	payload := strings.Repeat("x", 256)
	buf := []byte("HTTP/1.1 206 Partial Content\r\n" +
		"Content-Range: bytes 0-255/*\r\n" +
		"Content-Length: 256\r\n\r\n" + payload)

	got := protocol.Parse(buf, 256, 0, -1)
	if got.State != protocol.Ready {
		t.Errorf("expected Ready, got %v", got.State)
	}
	if got.TotalSize != 0 {
		t.Errorf("TotalSize = %d, want 0 for unknown", got.TotalSize)
	}
}

func TestParse_RangeStart(t *testing.T) {
	payload := strings.Repeat("x", 256)
	buf := response(512, 1024, payload, false)

	got := protocol.Parse(buf, 256, 512, 1024)
	if got.RangeStart != 512 {
		t.Errorf("RangeStart = %d, want 512", got.RangeStart)
	}
}

package client

import (
	"encoding/hex"
	"fmt"
	"hash"
)

// checksumVerifier digests accepted fragments in image order. Only
// fragments contiguous with the already-hashed prefix are written, so a
// replayed final fragment (after a rejected completion) is not counted
// twice.
type checksumVerifier struct {
	hash     hash.Hash
	expected string
	origin   int64 // first image byte covered by the digest
	next     int64 // next contiguous offset to hash
}

// add hashes p if it starts exactly at the next unhashed offset.
func (v *checksumVerifier) add(offset int64, p []byte) {
	if v == nil || offset != v.next {
		return
	}
	v.hash.Write(p)
	v.next += int64(len(p))
}

// verify compares the accumulated digest against the expected hex
// string. A digest that does not cover the whole image (resumed
// session) is not comparable and passes vacuously; the session logs a
// warning for that case.
func (v *checksumVerifier) verify() error {
	if v == nil || v.origin != 0 {
		return nil
	}

	actual := hex.EncodeToString(v.hash.Sum(nil))
	if actual != v.expected {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %s, got %s", v.expected, actual),
		}
	}

	return nil
}

// partial reports whether the digest cannot cover the full image.
func (v *checksumVerifier) partial() bool {
	return v != nil && v.origin != 0
}

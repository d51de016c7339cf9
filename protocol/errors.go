package protocol

import "errors"

// ErrRequestTooLarge is returned by [BuildRangeRequest] when the
// formatted request does not fit the supplied buffer. Enlarge the
// configured request buffer or shorten the host/resource strings;
// retrying cannot succeed.
var ErrRequestTooLarge = errors.New("request exceeds buffer capacity")

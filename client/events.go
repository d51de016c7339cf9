package client

// EventType identifies a session callback event.
type EventType int

const (
	// EventError reports a fatal transport or protocol failure. The
	// caller should disconnect, reconnect, and resume. The handler's
	// return value is ignored for error events.
	EventError EventType = iota

	// EventFragment delivers one firmware fragment. The Fragment field
	// points into the session's response buffer and is valid only
	// until the handler returns.
	EventFragment

	// EventDone signals that the download is complete.
	EventDone
)

func (t EventType) String() string {
	switch t {
	case EventError:
		return "error"
	case EventFragment:
		return "fragment"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is the payload passed to the session [Handler].
type Event struct {
	Type EventType

	// Fragment is set for EventFragment. It is a borrowed view into
	// the response buffer; copy it if it must outlive the handler.
	Fragment []byte

	// Err is set for EventError and carries the failure reason.
	Err error
}

// Handler consumes session events synchronously. A non-nil return
// rejects the event: rejecting EventFragment halts the download,
// rejecting EventDone rolls back the last fragment and requests the
// same byte range again. Handlers should return quickly; the session
// makes no progress while one runs.
type Handler func(Event) error

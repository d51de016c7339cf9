package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/adamwoolhether/dfu/protocol"
	"github.com/adamwoolhether/dfu/transport"
)

// Status is a download state machine state.
type Status int

const (
	// StatusIdle: never connected, or disconnected.
	StatusIdle Status = iota
	// StatusConnected: transport open, no download running.
	StatusConnected
	// StatusInProgress: a fragment request is outstanding.
	StatusInProgress
	// StatusComplete: the full image was delivered and acknowledged.
	StatusComplete
	// StatusHalted: the application rejected a fragment; no further
	// requests are issued.
	StatusHalted
	// StatusError: a fatal transport or protocol failure occurred.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnected:
		return "connected"
	case StatusInProgress:
		return "in-progress"
	case StatusComplete:
		return "complete"
	case StatusHalted:
		return "halted"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// sizeUnset marks a total image size that has not been learned from a
// response header yet.
const sizeUnset = -1

// Session is the full state record for one in-progress or resumable
// firmware download. A Session is single-threaded by contract: all
// methods must be called from one goroutine, and exactly one fragment
// request is outstanding at a time.
type Session struct {
	host     string
	resource string
	handler  Handler

	id       string
	logger   *slog.Logger
	tracer   trace.Tracer
	dialer   transport.Dialer
	limiter  *rate.Limiter
	checksum *checksumVerifier
	progress *progressLogger

	// reqBuf and respBuf are owned by the session and overwritten in
	// place on each cycle. Callers may inspect them between calls but
	// must never write to them.
	reqBuf  []byte
	respBuf []byte
	window  int

	// fragment views into respBuf; valid only for the duration of an
	// EventFragment dispatch.
	fragment []byte

	conn         transport.Conn
	firmwareSize int64
	downloadSize int64
	status       Status
}

// Build constructs a Session downloading resource from host and
// delivering events to handler. The host is a name the dialer can
// resolve, optionally carrying an explicit port.
func Build(host, resource string, handler Handler, optFns ...Option) (*Session, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying session option: %w", err)
		}
	}

	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	cfg := config{
		Host:         host,
		Resource:     resource,
		RequestSize:  defaultRequestSize,
		ResponseSize: defaultResponseSize,
		FragmentSize: defaultFragmentSize,
	}
	if opts.requestSize > 0 {
		cfg.RequestSize = opts.requestSize
	}
	if opts.responseSize > 0 {
		cfg.ResponseSize = opts.responseSize
	}
	if opts.fragmentSize > 0 {
		cfg.FragmentSize = opts.fragmentSize
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating session config: %w", err)
	}

	s := &Session{
		host:         host,
		resource:     resource,
		handler:      handler,
		id:           uuid.New().String(),
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("no-op tracer"),
		dialer:       &transport.TCPDialer{},
		limiter:      opts.limiter,
		checksum:     opts.checksum,
		reqBuf:       make([]byte, cfg.RequestSize),
		respBuf:      make([]byte, cfg.ResponseSize),
		window:       cfg.FragmentSize,
		firmwareSize: sizeUnset,
		downloadSize: opts.resumeOffset,
		status:       StatusIdle,
	}

	if opts.logger != nil {
		s.logger = opts.logger
	}
	if opts.tracer != nil {
		s.tracer = opts.tracer
	}
	if opts.dialer != nil {
		s.dialer = opts.dialer
	}
	if opts.progress {
		s.progress = &progressLogger{logger: s.logger}
	}
	if s.checksum != nil {
		s.checksum.origin = s.downloadSize
		s.checksum.next = s.downloadSize
	}

	return s, nil
}

// Connect opens the transport to the session host. Connecting an
// already-connected session is a no-op. On failure the session stays
// idle; do not start a download.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "dfu.connect",
		trace.WithAttributes(attribute.String("host", s.host)))
	defer span.End()

	if s.conn != nil && s.status == StatusConnected {
		s.logger.Debug("connect: already connected", "session_id", s.id, "host", s.host)
		return nil
	}

	conn, err := s.dialer.Dial(ctx, s.host)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.host, err)
	}

	s.conn = conn
	s.status = StatusConnected
	s.logger.Info("connected", "session_id", s.id, "host", s.host)

	return nil
}

// Disconnect closes the transport and returns the session to idle,
// abandoning any in-flight request. A download interrupted here can be
// resumed: reconnect and call Download again, and the next request
// picks up at the last acknowledged offset.
func (s *Session) Disconnect() {
	if s.conn == nil {
		return
	}

	if err := s.conn.Close(); err != nil {
		s.logger.Error("failed to close transport", "session_id", s.id, "error", err)
	}
	s.conn = nil
	s.status = StatusIdle
	s.logger.Info("disconnected", "session_id", s.id, "host", s.host)
}

// Download issues the first ranged request, starting or resuming at the
// current downloaded byte count. Drive the transfer with repeated
// Process calls until EventDone or EventError fires. On failure,
// disconnect and reconnect before trying again.
func (s *Session) Download(ctx context.Context) error {
	if s.conn == nil || s.status != StatusConnected {
		return fmt.Errorf("starting download: %w", ErrInvalidState)
	}

	ctx, span := s.tracer.Start(ctx, "dfu.download",
		trace.WithAttributes(
			attribute.String("resource", s.resource),
			attribute.Int64("offset", s.downloadSize),
		))
	defer span.End()

	s.firmwareSize = sizeUnset
	if s.progress != nil {
		s.progress.startTime = time.Now()
	}

	return s.fragmentRequest(ctx, false, false)
}

// Process performs one receive attempt and advances the state machine.
// It never blocks waiting for a full fragment; when the socket is quiet
// or a response is still arriving, Process is a no-op returning nil.
// Fatal failures are dispatched to the handler as an EventError and
// also returned. Outside of an active download, Process does nothing.
func (s *Session) Process(ctx context.Context) error {
	if s.conn == nil || s.status != StatusInProgress {
		return nil
	}

	clear(s.respBuf)
	n, err := s.conn.Receive(s.respBuf, true)
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return nil
	case err != nil:
		return s.fail(fmt.Errorf("receive: %w: %w", ErrNotConnected, err))
	case n == 0:
		return s.fail(fmt.Errorf("receive: %w: peer closed connection", ErrConnectionReset))
	}

	res := protocol.Parse(s.respBuf[:n], s.window, s.downloadSize, s.firmwareSize)

	if res.TotalSize != 0 {
		switch s.firmwareSize {
		case sizeUnset:
			s.firmwareSize = res.TotalSize
			s.logger.Debug("firmware size learned", "session_id", s.id, "total", res.TotalSize)
		case res.TotalSize:
		default:
			return s.fail(fmt.Errorf("%w: %d then %d", ErrTotalSizeChanged, s.firmwareSize, res.TotalSize))
		}
	}

	if res.State != protocol.Ready {
		// Headers or body still arriving; the bytes stay queued on the
		// transport until the next attempt.
		s.logger.Debug("response not ready", "session_id", s.id, "state", res.State.String(), "received", n)
		return nil
	}

	if res.RangeStart != s.downloadSize {
		s.logger.Debug("range start differs from download offset",
			"session_id", s.id, "start", res.RangeStart, "offset", s.downloadSize)
	}

	return s.deliver(ctx, res)
}

// Status returns the current state machine state.
func (s *Session) Status() Status {
	return s.status
}

// Progress returns the acknowledged downloaded byte count and the total
// image size. The total is -1 until the first response headers arrive.
func (s *Session) Progress() (downloaded, total int64) {
	return s.downloadSize, s.firmwareSize
}

// Fragment returns the most recently delivered fragment view. It is
// invalidated by the next Process call.
func (s *Session) Fragment() []byte {
	return s.fragment
}

// ID returns the session's unique identifier, as carried in its log
// records.
func (s *Session) ID() string {
	return s.id
}

// deliver hands a complete fragment to the handler and issues the
// follow-up request or the terminal event.
func (s *Session) deliver(ctx context.Context, res protocol.Result) error {
	s.fragment = s.respBuf[res.PayloadOffset : res.PayloadOffset+res.PayloadSize]

	ctx, span := s.tracer.Start(ctx, "dfu.fragment",
		trace.WithAttributes(
			attribute.Int64("offset", s.downloadSize),
			attribute.Int("size", res.PayloadSize),
		))
	defer span.End()

	if err := s.handler(Event{Type: EventFragment, Fragment: s.fragment}); err != nil {
		s.status = StatusHalted
		s.logger.Info("download halted by application",
			"session_id", s.id, "offset", s.downloadSize, "error", err)
		return nil
	}

	s.checksum.add(s.downloadSize, s.fragment)
	s.downloadSize += int64(res.PayloadSize)
	if s.progress != nil {
		s.progress.update(s.downloadSize, s.firmwareSize)
	}

	if s.downloadSize == s.firmwareSize {
		return s.complete(ctx, res)
	}

	return s.fragmentRequest(ctx, true, res.ConnectionClose)
}

// complete fires the done event. A rejected completion rolls back the
// final fragment and requests the same byte range again; this is the
// one place downloadSize decreases.
func (s *Session) complete(ctx context.Context, res protocol.Result) error {
	s.status = StatusComplete

	if err := s.handler(Event{Type: EventDone}); err != nil {
		s.logger.Info("completion rejected, re-requesting final fragment",
			"session_id", s.id, "error", err)
		s.downloadSize -= int64(res.PayloadSize)
		return s.fragmentRequest(ctx, true, res.ConnectionClose)
	}

	s.flush()

	if s.checksum.partial() {
		s.logger.Warn("checksum skipped: resumed download does not cover the full image",
			"session_id", s.id)
	} else if err := s.checksum.verify(); err != nil {
		s.status = StatusError
		s.logger.Error("image verification failed", "session_id", s.id, "error", err)
		return err
	}

	s.logger.Info("download complete", "session_id", s.id, "bytes", s.downloadSize)
	return nil
}

// fail marks the session failed and reports the reason through the
// handler before returning it.
func (s *Session) fail(err error) error {
	s.status = StatusError
	s.logger.Error("download failed", "session_id", s.id, "error", err)
	_ = s.handler(Event{Type: EventError, Err: err})
	return err
}

// fragmentRequest builds and sends the next ranged request at the
// current download offset. flush first discards any stale bytes queued
// on the receive side, so a leftover response cannot be mistaken for
// the reply to this request. reconnect tears down and redials the
// transport, used when the server announced Connection: close.
func (s *Session) fragmentRequest(ctx context.Context, flush, reconnect bool) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttle wait: %w", err)
		}
	}

	if flush {
		s.flush()
	}

	if reconnect {
		if err := s.conn.Close(); err != nil {
			s.logger.Error("failed to close transport", "session_id", s.id, "error", err)
		}
		s.conn = nil

		conn, err := s.dialer.Dial(ctx, s.host)
		if err != nil {
			return s.fail(fmt.Errorf("reconnecting: %w: %w", ErrConnectionReset, err))
		}
		s.conn = conn
		s.logger.Info("reconnected", "session_id", s.id, "host", s.host)
	}

	clear(s.reqBuf)
	n, err := protocol.BuildRangeRequest(s.reqBuf, s.host, s.resource, s.downloadSize, s.window)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	s.status = StatusInProgress
	if _, err := s.conn.Send(s.reqBuf[:n]); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	s.logger.Debug("fragment requested",
		"session_id", s.id, "offset", s.downloadSize, "window", s.window)

	return nil
}

// flush drains bytes still queued on the transport. Called after a
// delivered response is finished with, and before re-sending a request.
func (s *Session) flush() {
	if s.conn == nil || s.status == StatusIdle {
		return
	}

	n, err := s.conn.Receive(s.respBuf, false)
	if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
		_ = s.handler(Event{Type: EventError, Err: fmt.Errorf("flush: %w", err)})
	}
	if n > 0 {
		s.logger.Debug("flushed stale bytes", "session_id", s.id, "count", n)
	}
	clear(s.respBuf)
}

package client

import (
	"errors"
	"fmt"
	"hash"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/adamwoolhether/dfu/transport"
)

// Default buffer capacities. The response buffer must hold one full
// fragment plus the response headers.
const (
	defaultRequestSize  = 256
	defaultResponseSize = 4096
	defaultFragmentSize = 2048
)

// Option is a functional option for configuring a [Session] via [Build].
type Option func(*options) error

type options struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	dialer       transport.Dialer
	requestSize  int
	responseSize int
	fragmentSize int
	resumeOffset int64
	limiter      *rate.Limiter
	checksum     *checksumVerifier
	progress     bool
}

// WithLogger injects a custom [slog.Logger] into the [Session].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records connect, download, and per-fragment spans on the
// given tracer. A no-op tracer is used unless set.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithDialer replaces the default TCP dialer used to open and reopen
// the transport.
func WithDialer(dialer transport.Dialer) Option {
	return func(o *options) error {
		if dialer == nil {
			return errors.New("dialer must not be nil")
		}
		o.dialer = dialer
		return nil
	}
}

// WithRequestBufferSize sets the capacity of the request buffer. A
// formatted request that does not fit fails the download start with a
// configuration error.
func WithRequestBufferSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("request buffer size[%d] must be greater than zero", n)
		}
		o.requestSize = n
		return nil
	}
}

// WithResponseBufferSize sets the capacity of the response buffer. It
// must hold one full fragment plus the response headers.
func WithResponseBufferSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("response buffer size[%d] must be greater than zero", n)
		}
		o.responseSize = n
		return nil
	}
}

// WithFragmentSize sets the range window requested per fragment: the
// maximum payload the application receives per event.
func WithFragmentSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("fragment size[%d] must be greater than zero", n)
		}
		o.fragmentSize = n
		return nil
	}
}

// WithResumeOffset seeds the session's downloaded byte count so the
// first request resumes mid-image. The caller owns persisting the
// offset between runs.
func WithResumeOffset(n int64) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("resume offset[%d] must not be negative", n)
		}
		o.resumeOffset = n
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting of outbound fragment
// requests with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] must be greater than zero", rps, burst)
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithChecksum enables image digest verification on completion. h is a
// hash instance (e.g. sha256.New()) and expected is the hex-encoded
// expected digest. Verification is skipped for sessions resumed at a
// non-zero offset, since the digest cannot cover the whole image.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(o *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}
		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}
		o.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

// WithProgress enables periodic transfer progress logging via the
// session logger.
func WithProgress() Option {
	return func(o *options) error {
		o.progress = true
		return nil
	}
}

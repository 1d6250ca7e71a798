package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/netlabworks/netlab/client/progress"
	"github.com/netlabworks/netlab/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error

type options struct {
	client       *http.Client
	rt           http.RoundTripper
	logger       *slog.Logger
	tracer       trace.Tracer
	meter        progress.Meter
	throttle     *throttle.Config
	onConnected  func()
	onBadRequest func(*BadRequestError)
}

// WithHTTPClient replaces the default [http.Client] used by the [Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records one span per dispatched query on the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMeter registers the progress meter receiving query lifecycle
// events. Without it, progress notifications are dropped.
func WithMeter(meter progress.Meter) Option {
	return func(o *options) error {
		o.meter = meter
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting of outbound queries
// with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithConnectedFunc registers fn to run each time the version
// handshake succeeds and the connection is established.
func WithConnectedFunc(fn func()) Option {
	return func(o *options) error {
		o.onConnected = fn
		return nil
	}
}

// WithBadRequestHook registers fn to receive the diagnostic raised
// after a 400 response, once the query callback has already run.
// Without a hook the diagnostic is logged.
func WithBadRequestHook(fn func(*BadRequestError)) Option {
	return func(o *options) error {
		o.onBadRequest = fn
		return nil
	}
}

// QueryOption is a functional option for [Client.Query].
type QueryOption func(*queryOpts) error

type queryOpts struct {
	body         any
	context      map[string]any
	stream       StreamCallback
	noProgress   bool
	ignoreErrors bool
	progressText string
	timeout      time.Duration
	noTimeout    bool
}

// WithBody sets the query body: a map[string]any or a struct is sent
// as JSON, a [FilePath] is streamed from disk, string and []byte are
// sent as octet streams. Any other type is dropped.
func WithBody(body any) QueryOption {
	return func(q *queryOpts) error {
		q.body = body
		return nil
	}
}

// WithContext attaches caller data to the query. The callback receives
// a copy with the generated query id merged in; the caller's map is
// never mutated.
func WithContext(ctx map[string]any) QueryOption {
	return func(q *queryOpts) error {
		q.context = ctx
		return nil
	}
}

// WithStream registers cb for feed-style responses: each complete JSON
// value is delivered as soon as it can be decoded, regardless of how
// the bytes were fragmented in transit.
func WithStream(cb StreamCallback) QueryOption {
	return func(q *queryOpts) error {
		if cb == nil {
			return errors.New("stream callback must not be nil")
		}
		q.stream = cb
		return nil
	}
}

// WithoutProgress hides the query from the progress meter.
func WithoutProgress() QueryOption {
	return func(q *queryOpts) error {
		q.noProgress = true
		return nil
	}
}

// WithIgnoreErrors suppresses transport error handling for queries
// expected to fail, such as a notification feed torn down on purpose.
// The connection is not closed and no error callback fires.
func WithIgnoreErrors() QueryOption {
	return func(q *queryOpts) error {
		q.ignoreErrors = true
		return nil
	}
}

// WithProgressText overrides the auto-generated text shown for this
// query by the progress meter.
func WithProgressText(text string) QueryOption {
	return func(q *queryOpts) error {
		q.progressText = text
		return nil
	}
}

// WithTimeout overrides the default timeout applied while waiting for
// response headers.
func WithTimeout(d time.Duration) QueryOption {
	return func(q *queryOpts) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		q.timeout = d
		return nil
	}
}

// WithoutTimeout disables the header-wait timeout entirely.
func WithoutTimeout() QueryOption {
	return func(q *queryOpts) error {
		q.noTimeout = true
		return nil
	}
}

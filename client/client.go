package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/netlabworks/netlab/client/progress"
	"github.com/netlabworks/netlab/client/throttle"
)

// Client is an asynchronous NetLab controller client. Queries
// dispatched while disconnected first run the version handshake; see
// [Client.Query].
//
// A Client is safe for concurrent use. Completion and stream callbacks
// run on per-query goroutines, never on the caller's.
type Client struct {
	mu       sync.RWMutex
	settings Settings

	c      *http.Client
	logger *slog.Logger
	tracer trace.Tracer
	meter  progress.Meter

	onConnected  func()
	onBadRequest func(*BadRequestError)

	connected atomic.Bool

	qmu      sync.Mutex
	inflight map[string]*Response
}

// Build instantiates a Client for the controller described by settings.
// An empty protocol defaults to http.
func Build(settings Settings, optFns ...Option) (*Client, error) {
	if settings.Protocol == "" {
		settings.Protocol = "http"
	}
	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		settings:     settings,
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("no-op tracer"),
		meter:        opts.meter,
		onConnected:  opts.onConnected,
		onBadRequest: opts.onBadRequest,
		inflight:     make(map[string]*Response),
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	client.c = &http.Client{}
	if opts.client != nil {
		client.c = opts.client
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	case settings.Protocol == "https" && settings.AcceptInsecureCertificate != "":
		transport = pinnedTransport(settings.AcceptInsecureCertificate)
	default:
		transport = http.DefaultTransport
	}
	if opts.throttle != nil {
		rt, err := throttle.New(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// CancelQuery aborts the in-flight query with the given id, if any,
// and reports its end to the progress meter. The aborted query
// completes through the normal classification path with a transport
// error.
func (c *Client) CancelQuery(queryID string) {
	c.qmu.Lock()
	handle := c.inflight[queryID]
	c.qmu.Unlock()

	if handle == nil {
		return
	}

	c.logger.Warn("aborting query", "query_id", queryID)
	handle.Cancel()

	if c.meter != nil {
		c.meter.End(queryID)
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/netlabworks/netlab/client/stream"
)

// Response is the handle for an in-flight query. When the query needs
// a handshake first, the handle spans both stages and completes with
// the replayed query.
type Response struct {
	done chan struct{}

	// headers flips once response headers arrive; the timeout only
	// aborts a query that has received none.
	headers atomic.Bool

	mu      sync.Mutex
	queryID string
	abort   context.CancelFunc
	err     error
	stage   int
}

// QueryID returns the id correlating progress events for the query's
// currently running stage.
func (r *Response) QueryID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queryID
}

// Done returns a channel closed when the query completes.
func (r *Response) Done() <-chan struct{} {
	return r.done
}

// Err blocks until the query completes. It reports transport failures,
// handshake failures and the post-callback bad-request diagnostic;
// other HTTP-level errors are delivered through the callback only.
func (r *Response) Err() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Cancel aborts the query's transport request. The query still
// completes through the normal classification path.
func (r *Response) Cancel() {
	r.mu.Lock()
	abort := r.abort
	r.mu.Unlock()

	if abort != nil {
		abort()
	}
}

func (r *Response) begin(queryID string, abort context.CancelFunc) {
	r.mu.Lock()
	r.queryID = queryID
	r.abort = abort
	r.mu.Unlock()
	r.headers.Store(false)
}

func (r *Response) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// complete closes the handle with err as its outcome. Used by the
// handshake controller for chained handles; standalone handles are
// closed by run.
func (r *Response) complete(err error) {
	r.setErr(err)
	close(r.done)
}

// mirror retargets the handle's id and cancellation at the stage
// currently carrying the query. seq keeps retargeting monotonic: a
// fast probe finishing before the caller's goroutine resumes cannot
// clobber the replay stage already mirrored by the handshake.
func (r *Response) mirror(stage *Response, seq int) {
	stage.mu.Lock()
	queryID, abort := stage.queryID, stage.abort
	stage.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq <= r.stage {
		return
	}
	r.stage = seq
	r.queryID = queryID
	r.abort = abort
}

// Query calls the controller. If the client is not connected yet, a
// version handshake runs first and the query is replayed once the
// connection is established; the returned handle spans the whole
// sequence. The callback is invoked exactly once, on a separate
// goroutine, when the query completes.
func (c *Client) Query(method, path string, callback Callback, optFns ...QueryOption) (*Response, error) {
	var q queryOpts
	for _, opt := range optFns {
		if err := opt(&q); err != nil {
			return nil, fmt.Errorf("applying query option: %w", err)
		}
	}

	if c.connected.Load() {
		return c.execute(method, path, callback, q, false)
	}

	c.logger.Info("connecting to controller", "url", c.URL())
	return c.handshake(method, path, callback, q)
}

// execute dispatches one HTTP exchange and returns its handle. The
// handshake controller chains two of these into a single caller-facing
// handle; see Client.handshake.
func (c *Client) execute(method, path string, callback Callback, q queryOpts, bootstrap bool) (*Response, error) {
	pl, err := buildPayload(q.body)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()

	prefix := "/v2"
	if bootstrap {
		prefix = ""
	}
	var userInfo string
	if s.User != "" {
		userInfo = s.User + "@"
	}
	target := fmt.Sprintf("%s://%s%s:%d%s%s", s.Protocol, userInfo, bracketHost(s.Host), s.Port, prefix, path)

	c.logger.Debug("query", "method", method, "url", target)

	queryID := uuid.New().String()

	// The caller's context map is copied, never mutated in place.
	qctx := make(map[string]any, len(q.context)+1)
	for k, v := range q.context {
		qctx[k] = v
	}
	qctx["query_id"] = queryID

	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := c.tracer.Start(ctx, "query", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("query_id", queryID),
	))

	handle := &Response{done: make(chan struct{})}
	handle.begin(queryID, cancel)

	var body io.Reader
	if pl != nil {
		body = pl.reader
		if !q.noProgress && c.meter != nil {
			body = &countingReader{
				r:     pl.reader,
				total: pl.contentLength,
				fn: func(sent, total int64) {
					c.meter.Progress(queryID, sent, total)
				},
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		cancel()
		span.End()
		if pl != nil {
			if closer, ok := pl.reader.(io.Closer); ok {
				closer.Close()
			}
		}
		return nil, fmt.Errorf("building request: %w", err)
	}
	if s.User != "" {
		req.SetBasicAuth(s.User, s.Password)
	}
	req.Header.Set("User-Agent", userAgent())
	if pl != nil {
		req.Header.Set("Content-Type", pl.contentType)
		if pl.contentLength >= 0 {
			req.ContentLength = pl.contentLength
		}
	}

	c.qmu.Lock()
	c.inflight[queryID] = handle
	c.qmu.Unlock()

	timeout := q.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	var timer *time.Timer
	if !q.noTimeout {
		timer = time.AfterFunc(timeout, func() {
			// A query that is merely slow to stream its body is left
			// alone; only one that received zero headers is aborted.
			if !handle.headers.Load() {
				cancel()
			}
		})
	}

	// The start notification must come after every other observer is
	// wired so no progress event can precede it.
	if !q.noProgress && c.meter != nil {
		text := q.progressText
		if text == "" {
			text = "Waiting for " + c.URL()
		}
		c.meter.Start(queryID, text, handle)
	}

	go c.run(req, handle, callback, qctx, q, span, timer)

	return handle, nil
}

// run performs the blocking exchange on its own goroutine and routes
// the outcome through the response classifier.
func (c *Client) run(req *http.Request, handle *Response, callback Callback, qctx map[string]any, q queryOpts, span trace.Span, timer *time.Timer) {
	queryID, _ := qctx["query_id"].(string)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		handle.Cancel()
		span.End()

		c.qmu.Lock()
		delete(c.inflight, queryID)
		c.qmu.Unlock()

		close(handle.done)
	}()

	resp, err := c.c.Do(req)
	if err != nil {
		c.processResponse(handle, callback, qctx, q, nil, "", err)
		return
	}
	handle.headers.Store(true)
	defer resp.Body.Close()

	body, readErr := c.readBody(resp, queryID, q, qctx)
	c.processResponse(handle, callback, qctx, q, resp, body, readErr)
}

// readBody drains the response. For feed-style queries each chunk is
// handed to the stream decoder as it arrives; otherwise the whole body
// is collected for the classifier. Download byte counts are forwarded
// to the progress meter either way.
func (c *Client) readBody(resp *http.Response, queryID string, q queryOpts, qctx map[string]any) (string, error) {
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var collected []byte
	var dec stream.Decoder
	var received int64
	buf := make([]byte, 32*1024)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += int64(n)
			if !q.noProgress && c.meter != nil {
				c.meter.Progress(queryID, received, resp.ContentLength)
			}

			switch {
			case q.stream == nil:
				collected = append(collected, buf[:n]...)

			case resp.StatusCode >= 300:
				// Partial error bodies are never forwarded on a feed;
				// they are kept for the classifier instead.
				collected = append(collected, buf[:n]...)

			case contentType == contentTypeJSON:
				for _, v := range dec.Feed(buf[:n]) {
					q.stream(v, qctx)
				}

			default:
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				q.stream(chunk, qctx)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return decodeBody(collected), nil
			}
			return decodeBody(collected), err
		}
	}
}

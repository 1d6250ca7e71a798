package client

import (
	"time"

	"github.com/netlabworks/netlab/version"
)

const (
	// defaultTimeout bounds a query that never receives response
	// headers. Override per query with WithTimeout or WithoutTimeout.
	defaultTimeout = 120 * time.Second

	// handshakeTimeout bounds the bootstrap version probe.
	handshakeTimeout = 5 * time.Second

	contentTypeJSON  = "application/json"
	contentTypeOctet = "application/octet-stream"
)

// Callback receives the outcome of a query. It is invoked exactly once
// per request/response query; feed-style queries additionally deliver
// values through their StreamCallback before completion.
type Callback func(Result)

// StreamCallback receives one decoded JSON value from a feed-style
// response, or a raw []byte chunk when the feed is not JSON.
type StreamCallback func(value any, context map[string]any)

// Result is the uniform completion payload delivered to a Callback.
type Result struct {
	// Error reports a transport or HTTP-level failure.
	Error bool

	// Status is the HTTP status code, zero when no response was obtained.
	Status int

	// Body holds the parsed JSON payload. On failures it carries the
	// server's error document when one was sent, otherwise a single
	// "message" entry describing the error.
	Body map[string]any

	// RawBody is the decoded body text, set on success only.
	RawBody string

	// Context is the caller-supplied query context with the generated
	// "query_id" merged in.
	Context map[string]any
}

// Message returns the "message" entry of the body, if any.
func (r Result) Message() string {
	s, _ := r.Body["message"].(string)
	return s
}

// FilePath marks a query body as a file to stream from disk with
// Content-Type application/octet-stream.
type FilePath string

// userAgent identifies this client release to the controller.
func userAgent() string {
	return "NetLab Client v" + version.Version
}

package client

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// processResponse classifies a completed exchange and delivers exactly
// one callback invocation. resp is nil when no HTTP response was
// obtained; readErr reports a failure while draining an obtained one.
func (c *Client) processResponse(handle *Response, callback Callback, qctx map[string]any, q queryOpts, resp *http.Response, body string, transportErr error) {
	queryID, _ := qctx["query_id"].(string)

	if c.meter != nil {
		c.meter.End(queryID)
	}

	// No response, or the connection died mid-body: a hard transport
	// failure that invalidates the handshake.
	if transportErr != nil {
		handle.setErr(transportErr)

		if q.ignoreErrors {
			return
		}

		c.logger.Info("query transport error", "error", transportErr, "query_id", queryID)
		c.Close()
		if callback != nil {
			callback(Result{Error: true, Body: map[string]any{"message": transportErr.Error()}, Context: qctx})
		}
		return
	}

	status := resp.StatusCode
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	c.logger.Debug("decoding response", "status", status, "query_id", queryID)

	if status >= 400 {
		if status == http.StatusUnauthorized {
			c.logger.Error("authentication failed", "url", c.URL())
		}

		params, parsed := parseJSONBody(body, contentType)
		if callback != nil {
			if parsed {
				callback(Result{Error: true, Status: status, Body: params, Context: qctx})
			} else {
				callback(Result{Error: true, Status: status, Body: map[string]any{"message": resp.Status}, Context: qctx})
			}
		} else {
			// Nothing is wired to handle the error, so surface it here.
			if msg, ok := params["message"].(string); ok && msg != "" {
				c.logger.Error(msg)
			} else {
				c.logger.Error("query failed", "status", resp.Status, "query_id", queryID)
			}
		}
	} else {
		params, _ := parseJSONBody(body, contentType)
		if callback != nil {
			callback(Result{Status: status, Body: params, RawBody: body, Context: qctx})
		}
	}

	if status == http.StatusBadRequest {
		c.raiseBadRequest(handle, body)
	}
}

// raiseBadRequest records the post-callback bad-request diagnostic so
// an outer layer can attribute malformed queries distinctly from
// ordinary 400s. It never suppresses the callback already delivered.
func (c *Client) raiseBadRequest(handle *Response, body string) {
	bre := &BadRequestError{Body: body}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err == nil {
		if p, ok := doc["path"].(string); ok {
			bre.Fingerprint = p
		}
	}

	handle.setErr(bre)

	if c.onBadRequest != nil {
		c.onBadRequest(bre)
		return
	}
	c.logger.Error("bad request", "fingerprint", bre.Fingerprint, "body", body)
}

// parseJSONBody parses body into a map when it is non-blank and
// declared as JSON. It reports whether parsing succeeded; a decode
// failure degrades to an empty map, which handles security middleware
// that intercepts a query and replies with an HTML error page still
// labeled as JSON.
func parseJSONBody(body, contentType string) (map[string]any, bool) {
	params := map[string]any{}
	if strings.TrimSpace(body) == "" || contentType != contentTypeJSON {
		return params, false
	}

	if err := json.Unmarshal([]byte(body), &params); err != nil {
		return map[string]any{}, false
	}
	return params, true
}

// decodeBody turns raw body bytes into text, dropping stray NUL
// padding. Bytes that are not valid UTF-8 are treated as no body at
// all; intercepting middleware sometimes replies with garbage.
func decodeBody(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	return strings.Trim(string(b), "\x00")
}

package client

import (
	"fmt"
	"net/http"

	"github.com/netlabworks/netlab/version"
)

// handshake bootstraps the connection with a version probe, then
// replays the originally requested query. The returned handle spans
// both stages. Every caller that finds the client disconnected issues
// its own probe; there is no coalescing.
func (c *Client) handshake(method, path string, callback Callback, q queryOpts) (*Response, error) {
	outer := &Response{done: make(chan struct{})}

	probeCb := func(res Result) {
		c.validateHandshake(res, method, path, callback, q, outer)
	}

	probe, err := c.execute(http.MethodGet, "/version", probeCb, queryOpts{timeout: handshakeTimeout}, true)
	if err != nil {
		return nil, err
	}
	outer.mirror(probe, 1)

	return outer, nil
}

// validateHandshake checks the version probe outcome against the
// client build, and either fails the original query or marks the
// connection established and replays it.
func (c *Client) validateHandshake(res Result, method, path string, callback Callback, q queryOpts, outer *Response) {
	if res.Error {
		c.connectionError(callback, res.Message(), q)
		outer.complete(fmt.Errorf("%w %s: %s", ErrConnection, c.URL(), res.Message()))
		return
	}

	_, hasVersion := res.Body["version"]
	_, hasLocal := res.Body["local"]
	if !hasVersion || !hasLocal {
		msg := fmt.Sprintf("The remote server %s is not a NetLab controller", c.URL())
		c.logger.Error(msg)
		if callback != nil {
			callback(Result{Error: true, Body: map[string]any{"message": msg}, Context: q.context})
		}
		outer.complete(fmt.Errorf("%w: %s", ErrProtocolMismatch, c.URL()))
		return
	}

	// Versions are compared as ordered tuples, so "2.2" and "2.2.0"
	// are the same release.
	serverVersion, _ := res.Body["version"].(string)
	if version.Compare(serverVersion, version.Version) != 0 {
		msg := fmt.Sprintf("Client version %s differs with server version %s", version.Version, serverVersion)
		c.logger.Error(msg)

		// A stable release refuses any difference. A development build
		// still refuses to talk across a major.minor boundary.
		if version.Stable() || !version.SameMajorMinor(version.Version, serverVersion) {
			if callback != nil {
				callback(Result{Error: true, Body: map[string]any{"message": msg}, Context: q.context})
			}
			outer.complete(fmt.Errorf("%w: client %s, server %s", ErrVersionMismatch, version.Version, serverVersion))
			return
		}

		c.logger.Warn("running different client and server versions can create bugs, use at your own risk",
			"client", version.Version, "server", serverVersion)
	}

	c.connected.Store(true)
	if c.onConnected != nil {
		c.onConnected()
	}

	replay, err := c.execute(method, path, callback, q, false)
	if err != nil {
		c.connectionError(callback, err.Error(), q)
		outer.complete(fmt.Errorf("%w %s: %w", ErrConnection, c.URL(), err))
		return
	}
	outer.mirror(replay, 2)

	go func() {
		outer.complete(replay.Err())
	}()
}

// connectionError reports a failed connection attempt to the caller.
func (c *Client) connectionError(callback Callback, msg string, q queryOpts) {
	if msg != "" {
		msg = fmt.Sprintf("Cannot connect to server %s: %s", c.URL(), msg)
	} else {
		msg = fmt.Sprintf("Cannot connect to %s. Please check if the controller is allowed in your antivirus and firewall.", c.URL())
	}
	c.logger.Error(msg)

	if callback != nil {
		callback(Result{Error: true, Body: map[string]any{"message": msg}, Context: q.context})
	}
}

package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is wrapped into the handle error when the server
	// cannot be reached or the bootstrap probe fails.
	ErrConnection = errors.New("cannot connect to server")

	// ErrProtocolMismatch is reported when the handshake response is
	// missing the fields a NetLab controller always announces.
	ErrProtocolMismatch = errors.New("remote server is not a netlab controller")

	// ErrVersionMismatch is reported when client and server versions
	// are incompatible.
	ErrVersionMismatch = errors.New("client and server version mismatch")
)

// BadRequestError reports an HTTP 400 response. It is recorded on the
// query handle after the callback has already run, and handed to the
// bad-request hook when one is registered, so an outer layer can
// aggregate malformed requests without disturbing the normal callback
// contract.
type BadRequestError struct {
	// Fingerprint identifies the failing request. It is extracted from
	// the "path" key of the error document when present.
	Fingerprint string

	// Body is the decoded response body text.
	Body string
}

func (e *BadRequestError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("bad request [%s]: %s", e.Fingerprint, e.Body)
	}

	return fmt.Sprintf("bad request: %s", e.Body)
}

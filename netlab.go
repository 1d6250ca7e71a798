// Package netlab exposes the controller client builder.
package netlab

import (
	"github.com/netlabworks/netlab/client"
)

// NewClient instantiates a controller client for the given settings.
// If not specified, the default http.Client and http.Transport are used.
func NewClient(settings client.Settings, opts ...client.Option) (*client.Client, error) {
	return client.Build(settings, opts...)
}

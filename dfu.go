// Package dfu exposes the firmware download session builder.
package dfu

import (
	"github.com/adamwoolhether/dfu/client"
)

// NewSession instantiates a new *client.Session downloading resource
// from host with the provided options. If not specified, the default
// TCP dialer and buffer capacities are used.
func NewSession(host, resource string, handler client.Handler, opts ...client.Option) (*client.Session, error) {
	return client.Build(host, resource, handler, opts...)
}

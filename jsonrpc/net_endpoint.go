package jsonrpc

import (
	"fmt"
)

// Net is the net_ namespace endpoint
type Net struct {
	chainID uint64
}

// Version returns the chain id (net_version)
func (n *Net) Version() (interface{}, Error) {
	return fmt.Sprintf("%d", n.chainID), nil
}

// Listening reports whether the node accepts network connections; the
// in-process chain never does
func (n *Net) Listening() (interface{}, Error) {
	return false, nil
}

package transport

import (
	"io"

	"github.com/ValentinKolb/dDetect/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a catalog id and a request as parameters and returns a response
type ServerHandleFunc func(catalogId uint64, req []byte) (resp []byte)

// MetricsWriteFunc writes all metrics of the server in the Prometheus text format
type MetricsWriteFunc func(w io.Writer)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for passing the catalog id of the request
	RegisterHandler(handler ServerHandleFunc)
	// RegisterMetrics registers the writer of the metrics endpoint
	RegisterMetrics(write MetricsWriteFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(catalogId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}

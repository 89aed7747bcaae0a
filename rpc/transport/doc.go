// Package transport defines the interfaces for moving serialized rpc messages
// between clients and servers. Transports only move bytes, the serializer and
// the server adapter give them meaning.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler together with the
//     id of the addressed catalog. It also serves the metrics of the server.
//
//   - ServerHandleFunc / MetricsWriteFunc: callbacks registered by the server.
//
// The http subpackage is the only implementation.
package transport

// Package rpc exposes catalogs and their matchers over the network. It is the
// communication layer between the ddetect server and remote clients.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, the wire types of match results and catalog
//     metadata, server and client configuration and the logger factory.
//
//   - transport: Network communication abstractions and the HTTP implementation.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The remote matcher, a client that sends match and metadata requests
//     to a server and decodes the responses.
//
//   - server: The RPC server that loads the configured catalogs, routes incoming
//     requests to their providers and exposes the metrics of the caches.
package rpc

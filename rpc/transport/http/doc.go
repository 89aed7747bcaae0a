// Package http implements the transport interfaces over HTTP.
//
// Routes of the server:
//
//	POST /{catalogId}   serialized request message, answered with a serialized response
//	GET  /metrics       metrics in the Prometheus text format (if registered)
//	GET  /health        200 while the server is running
//
// The client spreads requests round-robin over all configured endpoints. A failed
// attempt is retried on the next endpoint, up to RetryCount attempts.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently once
//	connected. It uses an atomic counter for the round-robin selection.
package http

// Package common provides core data structures and utilities shared across
// the rpc packages. It defines the protocol elements, the wire types and the
// configuration used by servers and clients.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to different operation types. Includes factory methods
//     for creating the various request and response messages.
//
//   - MessageType: Enumeration of all supported operations (match, header match,
//     device id lookup, profile search and catalog info) plus control messages.
//
//   - MatchResult, ProfileInfo, CatalogInfo: the JSON payloads of responses.
//     They carry ids and names instead of catalog entities so a client does not
//     need the catalog.
//
//   - ServerConfig / ClientConfig: configuration of the server (catalogs, cache
//     settings, match options, endpoint) and of clients (endpoints, timeouts,
//     retries), each with a String renderer for startup logs.
//
//   - Logger: Custom logging implementation that plugs into the Dragonboat logger
//     factory, so every package logs through logger.GetLogger with one format.
package common

// Package server implements the RPC server of dDetect. It serves match requests for
// any number of catalogs, each addressed by its catalog id.
//
// The package focuses on:
//   - Loading the configured catalogs and building a match provider for each
//   - Adapter pattern to decouple the matching logic from the RPC mechanisms
//   - Exposing request, cache and pool metrics in the Prometheus text format
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a match.Provider.
//
//   - NewCatalogServerAdapter: Factory function creating the adapter for all catalog
//     operations (match, header match, device id, profile search and info).
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Catalogs: []common.ServerCatalog{
//	    {CatalogID: 1, Path: "/data/devices.dat", Mode: "lazy"},
//	  },
//	  Cache:    cache.HighThroughputTemplate(),
//	  Endpoint: "0.0.0.0:8080",
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Metrics (served by the transport under /metrics):
//
//	ddetect_requests_total{catalog,type}           handled requests
//	ddetect_request_errors_total{catalog,type}     requests answered with an error
//	ddetect_request_duration_seconds{type}         handling time
//	ddetect_requests_rejected_total{reason}        unknown catalog or undecodable request
//	ddetect_cache_*{catalog,entity}                size, requests, misses and evictions
//	ddetect_pool_decoders_*{catalog}               decoder pool state
//	ddetect_matches{catalog,method}                results per match method
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request uses its own pooled match request.
//	Serve is not thread-safe and should be called only once.
package server

// Package client implements the RPC client of dDetect. It matches against catalogs
// served by remote servers.
//
// The package focuses on:
//   - Transparent RPC access to the operations of a served catalog
//   - Integration with the transport and serialization layers
//   - Conversion of error responses into Go errors
//
// Key Components:
//
//   - IMatcher: Interface of all remote catalog operations (match, match of a
//     single stage, header match, device id, profile search and info).
//
//   - NewRemoteMatcher: Factory function that creates a client for one catalog id.
//     All operations are forwarded to the servers of the configured transport.
//
//   - NewLocalMatcher: Factory function that serves the same interface from a
//     catalog loaded in process, used by the CLI when no server is involved.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:8080"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 4,
//	}
//
//	// Create the matcher of catalog 1
//	m, _ := client.NewRemoteMatcher(1, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	defer m.Close()
//
//	// Match a user agent
//	res, _ := m.Match("Mozilla/5.0 (Linux; Android 14; SM-S918B) ...")
//	fmt.Println(res.Method, res.DeviceID, res.Properties["HardwareVendor"])
//
// Thread Safety:
//
//	A remote matcher is thread-safe as long as its transport is.
package client

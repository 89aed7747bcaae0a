// Package serializer converts rpc messages to bytes and back. It defines a common
// interface and three implementations with different performance characteristics.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A flag byte marks the present
//     fields, only those are written, each with a length prefix. Request headers
//     are written in key order so equal messages serialize to equal bytes.
//
//   - codecSerializerImpl: Wraps a marshal/unmarshal pair. NewJSONSerializer uses
//     goccy/go-json, useful for debugging or for clients in other languages.
//     NewGOBSerializer uses Go's gob encoding with pooled encode buffers; it is
//     larger and slower than the others and kept for Go clients that speak gob.
//
// Match results travel as a JSON payload inside the message in all formats, the
// serializer only frames the request fields.
//
// Thread Safety:
//
//	All serializer implementations are safe for concurrent use across multiple
//	goroutines without additional synchronization.
//
// Usage:
//
//	s, err := serializer.New("binary")
//	data, err := s.Serialize(*common.NewMatchRequest(ua, match.StageNone))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(receivedData, &resp)
package serializer

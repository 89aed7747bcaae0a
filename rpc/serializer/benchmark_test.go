package serializer

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dDetect/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"MatchRequest": {
			MsgType: common.MsgTMatch,
			Target:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.0.0 Safari/537.36",
		},
		"HeadersRequest": {
			MsgType: common.MsgTMatchHeaders,
			Headers: map[string]string{
				"User-Agent":           "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 Chrome/124.0.6367.82 Mobile Safari/537.36",
				"Device-Stock-UA":      "SAMSUNG-SM-S918B",
				"X-OperaMini-Phone-UA": "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80)",
			},
		},
		"MatchResponse": {
			MsgType: common.MsgTMatch,
			Ok:      true,
			Payload: []byte(`{"target":"x","signature_index":3,"device_id":"17779-17472-18093","profile_ids":[17779,17472,18093],"method":"Nearest","stage":"edit-distance","difference":1}`),
		},
		"LargePayload": {
			MsgType: common.MsgTInfo,
			Payload: []byte(strings.Repeat("x", 16*1024)), // 16KB of data
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Err:     "unknown property: HardwareModelName",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					if err := serializer.Deserialize(data, &msg); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

package serializer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ValentinKolb/dDetect/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	MsgType (1 byte) | flags (1 byte) | present fields in flag order
//
// Strings and byte slices are prefixed with their length (uint32, big endian),
// headers with their count followed by the sorted key/value pairs.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTarget   byte = 1 << 0
	hasStage    byte = 1 << 1
	hasHeaders  byte = 1 << 2
	hasProperty byte = 1 << 3
	hasValue    byte = 1 << 4
	hasPayload  byte = 1 << 5
	hasOk       byte = 1 << 6
	hasErr      byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, 2, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	if msg.Target != "" {
		flags |= hasTarget
		result = appendString(result, msg.Target)
	}

	if msg.Stage != "" {
		flags |= hasStage
		result = appendString(result, msg.Stage)
	}

	// Headers are written in key order, the output is deterministic
	if len(msg.Headers) > 0 {
		flags |= hasHeaders
		keys := make([]string, 0, len(msg.Headers))
		for k := range msg.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result = binary.BigEndian.AppendUint32(result, uint32(len(keys)))
		for _, k := range keys {
			result = appendString(result, k)
			result = appendString(result, msg.Headers[k])
		}
	}

	if msg.Property != "" {
		flags |= hasProperty
		result = appendString(result, msg.Property)
	}

	if msg.Value != "" {
		flags |= hasValue
		result = appendString(result, msg.Value)
	}

	if msg.Payload != nil {
		flags |= hasPayload
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Payload)))
		result = append(result, msg.Payload...)
	}

	// the flag alone carries the value
	if msg.Ok {
		flags |= hasOk
	}

	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{
		MsgType: common.MessageType(data[0]),
		Ok:      data[1]&hasOk != 0,
	}
	flags := data[1]
	r := reader{data: data, pos: 2}

	if flags&hasTarget != 0 {
		msg.Target = r.string("target")
	}

	if flags&hasStage != 0 {
		msg.Stage = r.string("stage")
	}

	if flags&hasHeaders != 0 {
		n := r.uint32("header count")
		if r.err == nil {
			// every header needs at least two length prefixes
			if int(n) > (len(data)-r.pos)/8 {
				return fmt.Errorf("data too short for %d headers", n)
			}
			msg.Headers = make(map[string]string, n)
			for i := uint32(0); i < n && r.err == nil; i++ {
				k := r.string("header name")
				msg.Headers[k] = r.string("header value")
			}
		}
	}

	if flags&hasProperty != 0 {
		msg.Property = r.string("property")
	}

	if flags&hasValue != 0 {
		msg.Value = r.string("value")
	}

	if flags&hasPayload != 0 {
		if p := r.bytes("payload"); r.err == nil {
			// copy, the payload must not alias the input buffer
			msg.Payload = append(make([]byte, 0, len(p)), p...)
		}
	}

	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	for _, s := range []string{msg.Target, msg.Stage, msg.Property, msg.Value, msg.Err} {
		if s != "" {
			size += 4 + len(s)
		}
	}
	if len(msg.Headers) > 0 {
		size += 4
		for k, v := range msg.Headers {
			size += 8 + len(k) + len(v)
		}
	}
	if msg.Payload != nil {
		size += 4 + len(msg.Payload)
	}

	return size
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

// reader reads length prefixed fields and keeps the first error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) uint32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s length", field)
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) bytes(field string) []byte {
	n := int(r.uint32(field))
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s data", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) string(field string) string {
	return string(r.bytes(field))
}

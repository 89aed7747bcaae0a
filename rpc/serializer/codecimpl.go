package serializer

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/goccy/go-json"
)

// codecSerializerImpl implements IRPCSerializer on top of a generic marshal/unmarshal
// pair. It backs the json and gob serializers, the binary one has its own format.
type codecSerializerImpl struct {
	marshal   func(msg *common.Message) ([]byte, error)
	unmarshal func(b []byte, msg *common.Message) error
}

// NewJSONSerializer creates a new serializer using json encoding (goccy/go-json).
// Message types are written by name, payloads base64 encoded.
func NewJSONSerializer() IRPCSerializer {
	return &codecSerializerImpl{
		marshal: func(msg *common.Message) ([]byte, error) {
			return json.Marshal(msg)
		},
		unmarshal: func(b []byte, msg *common.Message) error {
			return json.Unmarshal(b, msg)
		},
	}
}

// gobBuffers holds the encode buffers of the gob serializer. The encoded bytes are
// copied out before a buffer is returned.
var gobBuffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// NewGOBSerializer creates a new serializer using Go's binary gob format.
// Every message is a self-contained gob stream including its type information.
func NewGOBSerializer() IRPCSerializer {
	return &codecSerializerImpl{
		marshal: func(msg *common.Message) ([]byte, error) {
			buf := gobBuffers.Get().(*bytes.Buffer)
			defer func() {
				buf.Reset()
				gobBuffers.Put(buf)
			}()
			if err := gob.NewEncoder(buf).Encode(msg); err != nil {
				return nil, err
			}
			return bytes.Clone(buf.Bytes()), nil
		},
		unmarshal: func(b []byte, msg *common.Message) error {
			return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c codecSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.marshal(&msg)
}

func (c codecSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// neither codec clears fields that are absent from the input
	*msg = common.Message{}
	return c.unmarshal(b, msg)
}

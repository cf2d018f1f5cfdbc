// Package frame implements the wire framer: the boundary between a
// message payload arriving on an ingress source and the bytes handed to
// the Kafka producer.
//
// When a schema is configured, a payload is treated as JSON, deserialised
// against that schema, re-serialised as Avro binary, and prefixed with the
// Confluent wire format header (a 0x00 magic byte followed by the four-byte
// big-endian schema id). When no schema is configured, framing is the
// identity function: the payload is forwarded unchanged.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/kroliko/kafka-proxy/internal/avro/decode"
	"github.com/kroliko/kafka-proxy/internal/avro/encode"
	"github.com/kroliko/kafka-proxy/internal/avro/schema"
)

// MagicByte is the Confluent wire format's leading byte.
const MagicByte = 0x00

// HeaderLen is the size of the magic byte plus the big-endian schema id.
const HeaderLen = 5

// Framer turns an incoming payload into the bytes that should be produced
// to Kafka.
type Framer struct {
	schemaID uint32
	schema   schema.Schema
}

// New returns a Framer that encodes payloads against s under schemaID. A
// nil Framer (the zero value obtained via NoSchema) passes payloads through
// unchanged.
func New(schemaID uint32, s schema.Schema) *Framer {
	return &Framer{schemaID: schemaID, schema: s}
}

// NoSchema returns a Framer with no configured schema; Encode becomes the
// identity function.
func NoSchema() *Framer {
	return nil
}

// Encode frames payload for production to Kafka. With no schema configured
// it returns payload unchanged.
func (f *Framer) Encode(payload []byte) ([]byte, error) {
	if f == nil || f.schema == nil {
		return payload, nil
	}

	v, err := decode.Deserialize(f.schema, payload)
	if err != nil {
		return nil, fmt.Errorf("frame: deserialize: %w", err)
	}
	avroBin, err := encode.Encode(f.schema, v)
	if err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}

	out := make([]byte, HeaderLen+len(avroBin))
	out[0] = MagicByte
	binary.BigEndian.PutUint32(out[1:5], f.schemaID)
	copy(out[5:], avroBin)
	return out, nil
}

// HasSchema reports whether this framer was configured against a schema.
func (f *Framer) HasSchema() bool {
	return f != nil && f.schema != nil
}

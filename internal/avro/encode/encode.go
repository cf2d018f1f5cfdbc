// Package encode implements the Avro binary writer: a schema-directed
// serialiser from the typed value tree (internal/avro/value) to the Avro
// binary encoding, per spec.md §4.1's round-trip property and §4.2's
// framing contract.
package encode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kroliko/kafka-proxy/internal/avro/schema"
	"github.com/kroliko/kafka-proxy/internal/avro/value"
)

// Encode serialises v against schema s using the standard Avro binary
// encoding (zigzag varint ints/longs, little-endian IEEE-754 floats/
// doubles, length-prefixed bytes/strings, block-counted arrays/maps, a
// varint branch index ahead of unions, concatenated record fields, a
// varint symbol index for enums, raw bytes for fixed and fixed-backed
// decimals, and length-prefixed bytes for bytes-backed decimals).
func Encode(s schema.Schema, v value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, s, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, s schema.Schema, v value.Value) error {
	switch node := s.(type) {
	case *schema.Primitive:
		return encodePrimitive(buf, node, v)
	case *schema.BytesSchema:
		return encodeBytesSchema(buf, node, v)
	case *schema.ArraySchema:
		return encodeArray(buf, node, v)
	case *schema.MapSchema:
		return encodeMap(buf, node, v)
	case *schema.UnionSchema:
		return encodeUnion(buf, node, v)
	case *schema.RecordSchema:
		return encodeRecord(buf, node, v)
	case *schema.EnumSchema:
		return encodeEnum(buf, node, v)
	case *schema.FixedSchema:
		return encodeFixed(buf, node, v)
	}
	return fmt.Errorf("encode: unsupported schema node %T", s)
}

func encodePrimitive(buf *bytes.Buffer, p *schema.Primitive, v value.Value) error {
	switch p.Kind() {
	case schema.Null:
		return nil
	case schema.Boolean:
		b, ok := v.(value.Bool)
		if !ok {
			return fmt.Errorf("encode: expected Bool, got %T", v)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil
	case schema.Int:
		return encodeIntLike(buf, v)
	case schema.Long:
		return encodeLongLike(buf, v)
	case schema.Float:
		f, ok := v.(value.Float)
		if !ok {
			return fmt.Errorf("encode: expected Float, got %T", v)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(f)))
		buf.Write(b[:])
		return nil
	case schema.Double:
		d, ok := v.(value.Double)
		if !ok {
			return fmt.Errorf("encode: expected Double, got %T", v)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(float64(d)))
		buf.Write(b[:])
		return nil
	case schema.String:
		if p.Logical() == schema.LogicalUUID {
			u, ok := v.(value.UUID)
			if !ok {
				return fmt.Errorf("encode: expected UUID, got %T", v)
			}
			return writeString(buf, string(u))
		}
		s, ok := v.(value.String)
		if !ok {
			return fmt.Errorf("encode: expected String, got %T", v)
		}
		return writeString(buf, string(s))
	}
	return fmt.Errorf("encode: unsupported primitive kind %v", p.Kind())
}

// encodeIntLike accepts Int directly, or any int-bearing logical-type value
// (Date, TimeMillis) since they all serialise as a zigzag-varint int32.
func encodeIntLike(buf *bytes.Buffer, v value.Value) error {
	var i int32
	switch n := v.(type) {
	case value.Int:
		i = int32(n)
	case value.Date:
		i = int32(n)
	case value.TimeMillis:
		i = int32(n)
	default:
		return fmt.Errorf("encode: expected int-like value, got %T", v)
	}
	writeVarint(buf, int64(i))
	return nil
}

// encodeLongLike accepts Long or any long-bearing logical-type value.
func encodeLongLike(buf *bytes.Buffer, v value.Value) error {
	var i int64
	switch n := v.(type) {
	case value.Long:
		i = int64(n)
	case value.TimeMicros:
		i = int64(n)
	case value.TimestampMillis:
		i = int64(n)
	case value.TimestampMicros:
		i = int64(n)
	case value.LocalTimestampMillis:
		i = int64(n)
	case value.LocalTimestampMicros:
		i = int64(n)
	default:
		return fmt.Errorf("encode: expected long-like value, got %T", v)
	}
	writeVarint(buf, i)
	return nil
}

func encodeBytesSchema(buf *bytes.Buffer, b *schema.BytesSchema, v value.Value) error {
	if b.Logical() == schema.LogicalDecimal {
		d, ok := v.(value.Decimal)
		if !ok {
			return fmt.Errorf("encode: expected Decimal, got %T", v)
		}
		return writeBytes(buf, []byte(d))
	}
	bs, ok := v.(value.Bytes)
	if !ok {
		return fmt.Errorf("encode: expected Bytes, got %T", v)
	}
	return writeBytes(buf, []byte(bs))
}

func encodeArray(buf *bytes.Buffer, a *schema.ArraySchema, v value.Value) error {
	arr, ok := v.(value.Array)
	if !ok {
		return fmt.Errorf("encode: expected Array, got %T", v)
	}
	if len(arr) > 0 {
		writeVarint(buf, int64(len(arr)))
		for _, elem := range arr {
			if err := encodeNode(buf, a.Items, elem); err != nil {
				return err
			}
		}
	}
	writeVarint(buf, 0)
	return nil
}

func encodeMap(buf *bytes.Buffer, m *schema.MapSchema, v value.Value) error {
	mv, ok := v.(value.Map)
	if !ok {
		return fmt.Errorf("encode: expected Map, got %T", v)
	}
	if len(mv) > 0 {
		writeVarint(buf, int64(len(mv)))
		for k, val := range mv {
			if err := writeString(buf, k); err != nil {
				return err
			}
			if err := encodeNode(buf, m.Values, val); err != nil {
				return err
			}
		}
	}
	writeVarint(buf, 0)
	return nil
}

func encodeUnion(buf *bytes.Buffer, u *schema.UnionSchema, v value.Value) error {
	un, ok := v.(value.Union)
	if !ok {
		return fmt.Errorf("encode: expected Union, got %T", v)
	}
	if un.Index < 0 || un.Index >= len(u.Branches) {
		return fmt.Errorf("encode: union index %d out of range", un.Index)
	}
	writeVarint(buf, int64(un.Index))
	return encodeNode(buf, u.Branches[un.Index], un.Inner)
}

func encodeRecord(buf *bytes.Buffer, r *schema.RecordSchema, v value.Value) error {
	rec, ok := v.(value.Record)
	if !ok {
		return fmt.Errorf("encode: expected Record, got %T", v)
	}
	if len(rec.Fields) != len(r.Fields) {
		return fmt.Errorf("encode: record %q expected %d fields, got %d", r.Name, len(r.Fields), len(rec.Fields))
	}
	for i, f := range r.Fields {
		if rec.Fields[i].Name != f.Name {
			return fmt.Errorf("encode: record %q field %d: expected %q, got %q", r.Name, i, f.Name, rec.Fields[i].Name)
		}
		if err := encodeNode(buf, f.Type, rec.Fields[i].Value); err != nil {
			return fmt.Errorf("encode: record %q field %q: %w", r.Name, f.Name, err)
		}
	}
	return nil
}

func encodeEnum(buf *bytes.Buffer, e *schema.EnumSchema, v value.Value) error {
	en, ok := v.(value.Enum)
	if !ok {
		return fmt.Errorf("encode: expected Enum, got %T", v)
	}
	if en.Index < 0 || en.Index >= len(e.Symbols) {
		return fmt.Errorf("encode: enum %q index %d out of range", e.Name, en.Index)
	}
	writeVarint(buf, int64(en.Index))
	return nil
}

func encodeFixed(buf *bytes.Buffer, f *schema.FixedSchema, v value.Value) error {
	fx, ok := v.(value.Fixed)
	if !ok {
		return fmt.Errorf("encode: expected Fixed, got %T", v)
	}
	if len(fx.Bytes) != f.Size {
		return fmt.Errorf("encode: fixed %q requires %d bytes, got %d", f.Name, f.Size, len(fx.Bytes))
	}
	buf.Write(fx.Bytes)
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	return writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	writeVarint(buf, int64(len(b)))
	buf.Write(b)
	return nil
}

// writeVarint writes n as a zigzag-encoded Avro varint (least significant
// 7 bits per byte, high bit set on all but the final byte).
func writeVarint(buf *bytes.Buffer, n int64) {
	zz := uint64((n << 1) ^ (n >> 63))
	for zz >= 0x80 {
		buf.WriteByte(byte(zz) | 0x80)
		zz >>= 7
	}
	buf.WriteByte(byte(zz))
}

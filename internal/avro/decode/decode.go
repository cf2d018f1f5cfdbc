// Package decode implements the JSON→Avro deserialiser: a total function
// from (schema, JSON) to the typed value tree in internal/avro/value, per
// spec.md §4.1.
package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/kroliko/kafka-proxy/internal/avro/schema"
	"github.com/kroliko/kafka-proxy/internal/avro/value"
)

// jsonAPI matches the jsoniter configuration used throughout this codebase
// (internal/avro/schema, internal/registry) rather than stdlib
// encoding/json, per this package's JSON-library choice.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Deserialize parses raw JSON text against schema s and produces the typed
// value tree it describes. It is total over the product of (supported
// schema node, JSON node); schema nodes this package cannot represent never
// reach here (schema.Parse already rejected them at startup).
func Deserialize(s schema.Schema, raw []byte) (value.Value, error) {
	dec := jsonAPI.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: invalid json: %w", err)
	}
	return deserializeNode(s, v)
}

func deserializeNode(s schema.Schema, v interface{}) (value.Value, error) {
	switch node := s.(type) {
	case *schema.Primitive:
		return deserializePrimitive(node, v)
	case *schema.BytesSchema:
		return deserializeBytes(node, v)
	case *schema.ArraySchema:
		return deserializeArray(node, v)
	case *schema.MapSchema:
		return deserializeMap(node, v)
	case *schema.UnionSchema:
		return deserializeUnion(node, v)
	case *schema.RecordSchema:
		return deserializeRecord(node, v)
	case *schema.EnumSchema:
		return deserializeEnum(node, v)
	case *schema.FixedSchema:
		return deserializeFixed(node, v)
	}
	return nil, fmt.Errorf("decode: unsupported schema node %T", s)
}

func deserializePrimitive(p *schema.Primitive, v interface{}) (value.Value, error) {
	switch p.Kind() {
	case schema.Null:
		if v != nil {
			return nil, fmt.Errorf("decode: expected null, got %T", v)
		}
		return value.Null{}, nil
	case schema.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("decode: expected boolean, got %T", v)
		}
		return value.Bool(b), nil
	case schema.Int:
		if p.Logical() != schema.NoLogical {
			return deserializeLogicalOnInt(p.Logical(), v)
		}
		d, err := numberToDecimal(v)
		if err != nil {
			return nil, err
		}
		i, err := toInt32(d)
		if err != nil {
			return nil, err
		}
		return value.Int(i), nil
	case schema.Long:
		if p.Logical() != schema.NoLogical {
			return deserializeLogicalOnLong(p.Logical(), v)
		}
		d, err := numberToDecimal(v)
		if err != nil {
			return nil, err
		}
		i, err := toInt64(d)
		if err != nil {
			return nil, err
		}
		return value.Long(i), nil
	case schema.Float:
		d, err := numberToDecimal(v)
		if err != nil {
			return nil, err
		}
		f, _ := d.Float64()
		if math.IsInf(float64(float32(f)), 0) {
			return nil, fmt.Errorf("decode: value out of range for float")
		}
		return value.Float(float32(f)), nil
	case schema.Double:
		d, err := numberToDecimal(v)
		if err != nil {
			return nil, err
		}
		f, _ := d.Float64()
		return value.Double(f), nil
	case schema.String:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("decode: expected string, got %T", v)
		}
		if p.Logical() == schema.LogicalUUID {
			u, err := uuid.Parse(str)
			if err != nil {
				return nil, fmt.Errorf("decode: invalid uuid %q: %w", str, err)
			}
			return value.UUID(u.String()), nil
		}
		return value.String(str), nil
	}
	return nil, fmt.Errorf("decode: unsupported primitive kind %v", p.Kind())
}

func deserializeLogicalOnInt(l schema.Logical, v interface{}) (value.Value, error) {
	switch l {
	case schema.LogicalDate:
		return deserializeDate(v)
	case schema.LogicalTimeMillis:
		return deserializeTimeMillis(v)
	}
	return nil, fmt.Errorf("decode: unsupported logical type %v on int", l)
}

func deserializeLogicalOnLong(l schema.Logical, v interface{}) (value.Value, error) {
	switch l {
	case schema.LogicalTimeMicros:
		return deserializeTimeMicros(v)
	case schema.LogicalTimestampMillis:
		return deserializeTimestampMillis(v)
	case schema.LogicalTimestampMicros:
		return deserializeTimestampMicros(v)
	case schema.LogicalLocalTimestampMillis:
		return deserializeLocalTimestampMillis(v)
	case schema.LogicalLocalTimestampMicros:
		return deserializeLocalTimestampMicros(v)
	}
	return nil, fmt.Errorf("decode: unsupported logical type %v on long", l)
}

func deserializeBytes(b *schema.BytesSchema, v interface{}) (value.Value, error) {
	if b.Logical() == schema.LogicalDecimal {
		return deserializeDecimal(v, b.Scale)
	}
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("decode: expected base64 string for bytes, got %T", v)
	}
	b64, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("decode: invalid base64 for bytes: %w", err)
	}
	return value.Bytes(b64), nil
}

func deserializeArray(a *schema.ArraySchema, v interface{}) (value.Value, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("decode: expected json array, got %T", v)
	}
	out := make(value.Array, 0, len(arr))
	for i, elem := range arr {
		ev, err := deserializeNode(a.Items, elem)
		if err != nil {
			return nil, fmt.Errorf("decode: array element %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func deserializeMap(m *schema.MapSchema, v interface{}) (value.Value, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decode: expected json object for map, got %T", v)
	}
	out := make(value.Map, len(obj))
	for k, raw := range obj {
		vv, err := deserializeNode(m.Values, raw)
		if err != nil {
			return nil, fmt.Errorf("decode: map key %q: %w", k, err)
		}
		out[k] = vv
	}
	return out, nil
}

// deserializeUnion tries each branch in declaration order and returns the
// first that succeeds (spec §9: first-match-wins, not type-closest-match).
func deserializeUnion(u *schema.UnionSchema, v interface{}) (value.Value, error) {
	var lastErr error
	for i, branch := range u.Branches {
		inner, err := deserializeNode(branch, v)
		if err == nil {
			return value.Union{Index: i, Inner: inner}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("decode: no union branch matched: %w", lastErr)
}

func deserializeRecord(r *schema.RecordSchema, v interface{}) (value.Value, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decode: expected json object for record %q, got %T", r.Name, v)
	}
	fields := make([]value.Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		raw, present := obj[f.Name]
		var fv value.Value
		var err error
		if present {
			fv, err = deserializeNode(f.Type, raw)
		} else if f.HasDefault {
			fv, err = deserializeNode(f.Type, f.Default)
		} else {
			return nil, fmt.Errorf("decode: record %q missing field %q with no default", r.Name, f.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("decode: record %q field %q: %w", r.Name, f.Name, err)
		}
		fields = append(fields, value.Field{Name: f.Name, Value: fv})
	}
	return value.Record{Fields: fields}, nil
}

func deserializeEnum(e *schema.EnumSchema, v interface{}) (value.Value, error) {
	switch sym := v.(type) {
	case string:
		for i, s := range e.Symbols {
			if s == sym {
				return value.Enum{Index: i, Symbol: s}, nil
			}
		}
		return nil, fmt.Errorf("decode: %q is not a symbol of enum %q", sym, e.Name)
	default:
		d, err := numberToDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("decode: expected enum symbol string or index, got %T", v)
		}
		idx, err := toInt32(d)
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(e.Symbols) {
			return nil, fmt.Errorf("decode: enum index %d out of range for %q", idx, e.Name)
		}
		return value.Enum{Index: int(idx), Symbol: e.Symbols[idx]}, nil
	}
}

func deserializeFixed(f *schema.FixedSchema, v interface{}) (value.Value, error) {
	if f.Logical() == schema.LogicalDecimal {
		dv, err := deserializeDecimal(v, f.Scale)
		if err != nil {
			return nil, err
		}
		b := []byte(dv.(value.Decimal))
		if len(b) > f.Size {
			return nil, fmt.Errorf("decode: decimal requires %d bytes, fixed size is %d", len(b), f.Size)
		}
		padded := make([]byte, f.Size)
		pad := byte(0x00)
		if len(b) > 0 && b[0]&0x80 != 0 {
			pad = 0xff
		}
		for i := range padded {
			padded[i] = pad
		}
		copy(padded[f.Size-len(b):], b)
		return value.Fixed{Size: f.Size, Bytes: padded}, nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("decode: expected base64 string for fixed %q, got %T", f.Name, v)
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("decode: invalid base64 for fixed %q: %w", f.Name, err)
	}
	if len(b) != f.Size {
		return nil, fmt.Errorf("decode: fixed %q requires exactly %d bytes, got %d", f.Name, f.Size, len(b))
	}
	return value.Fixed{Size: f.Size, Bytes: b}, nil
}

func deserializeDecimal(v interface{}, scale int) (value.Value, error) {
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, err
	}
	rescaled := d.Rescale(-int32(scale))
	return value.Decimal(bigIntToTwosComplement(rescaled.Coefficient())), nil
}

func bigIntToTwosComplement(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	absBits := new(big.Int).Abs(v).BitLen()
	nBytes := absBits/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	tc := new(big.Int).Add(mod, v)
	b := tc.Bytes()
	for len(b) < nBytes {
		b = append([]byte{0x00}, b...)
	}
	return b
}

func numberToDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	}
	return decimal.Decimal{}, fmt.Errorf("decode: expected json number, got %T", v)
}

func toInt32(d decimal.Decimal) (int32, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("decode: %s is not an integer", d.String())
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("decode: %s out of int range", d.String())
	}
	i64 := bi.Int64()
	if i64 < math.MinInt32 || i64 > math.MaxInt32 {
		return 0, fmt.Errorf("decode: %s out of int32 range", d.String())
	}
	return int32(i64), nil
}

func toInt64(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("decode: %s is not an integer", d.String())
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("decode: %s out of int64 range", d.String())
	}
	return bi.Int64(), nil
}

// --- date/time helpers -------------------------------------------------

func parseRFC3339(v interface{}) (time.Time, bool, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode: invalid RFC3339 timestamp %q: %w", str, err)
	}
	return t, true, nil
}

func deserializeDate(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
		y, m, d := t.UTC().Date()
		utcMidnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		days := int32(utcMidnight.Sub(epoch).Hours() / 24)
		return value.Date(days), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer day count for date")
	}
	i, err := toInt32(d)
	if err != nil {
		return nil, err
	}
	return value.Date(i), nil
}

func deserializeTimeMillis(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		ms := t.Sub(midnight).Milliseconds()
		return value.TimeMillis(int32(ms)), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer millis for time-millis")
	}
	i, err := toInt32(d)
	if err != nil {
		return nil, err
	}
	return value.TimeMillis(i), nil
}

func deserializeTimeMicros(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		us := t.Sub(midnight).Microseconds()
		return value.TimeMicros(us), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer micros for time-micros")
	}
	i, err := toInt64(d)
	if err != nil {
		return nil, err
	}
	return value.TimeMicros(i), nil
}

func deserializeTimestampMillis(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		return value.TimestampMillis(t.UnixMilli()), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer millis for timestamp-millis")
	}
	i, err := toInt64(d)
	if err != nil {
		return nil, err
	}
	return value.TimestampMillis(i), nil
}

func deserializeTimestampMicros(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		return value.TimestampMicros(t.UnixMicro()), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer micros for timestamp-micros")
	}
	i, err := toInt64(d)
	if err != nil {
		return nil, err
	}
	return value.TimestampMicros(i), nil
}

func naiveUnix(t time.Time, unit time.Duration) int64 {
	naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	switch unit {
	case time.Millisecond:
		return naive.UnixMilli()
	case time.Microsecond:
		return naive.UnixMicro()
	}
	return naive.Unix()
}

func deserializeLocalTimestampMillis(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		return value.LocalTimestampMillis(naiveUnix(t, time.Millisecond)), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer millis for local-timestamp-millis")
	}
	i, err := toInt64(d)
	if err != nil {
		return nil, err
	}
	return value.LocalTimestampMillis(i), nil
}

func deserializeLocalTimestampMicros(v interface{}) (value.Value, error) {
	if t, ok, err := parseRFC3339(v); err != nil {
		return nil, err
	} else if ok {
		return value.LocalTimestampMicros(naiveUnix(t, time.Microsecond)), nil
	}
	d, err := numberToDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("decode: expected RFC3339 string or integer micros for local-timestamp-micros")
	}
	i, err := toInt64(d)
	if err != nil {
		return nil, err
	}
	return value.LocalTimestampMicros(i), nil
}

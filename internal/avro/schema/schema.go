// Package schema represents a parsed, immutable Avro schema tree.
//
// Schemas are resolved once at startup from a schema registry response and
// never mutated afterwards; every concrete type in this package is safe for
// concurrent reads from multiple goroutines.
package schema

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Kind identifies the shape of a Schema node.
type Kind int

const (
	Null Kind = iota
	Boolean
	Int
	Long
	Float
	Double
	Bytes
	String
	Array
	Map
	Union
	Record
	Enum
	Fixed
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bytes:
		return "bytes"
	case String:
		return "string"
	case Array:
		return "array"
	case Map:
		return "map"
	case Union:
		return "union"
	case Record:
		return "record"
	case Enum:
		return "enum"
	case Fixed:
		return "fixed"
	}
	return "unknown"
}

// Logical identifies one of the logical-type overlays a Schema node may
// carry on top of its primitive/fixed kind.
type Logical int

const (
	NoLogical Logical = iota
	LogicalUUID
	LogicalDate
	LogicalTimeMillis
	LogicalTimeMicros
	LogicalTimestampMillis
	LogicalTimestampMicros
	LogicalLocalTimestampMillis
	LogicalLocalTimestampMicros
	LogicalDecimal
)

// Schema is any node in a parsed Avro schema tree.
type Schema interface {
	Kind() Kind
	Logical() Logical
}

type base struct {
	kind    Kind
	logical Logical
}

func (b base) Kind() Kind       { return b.kind }
func (b base) Logical() Logical { return b.logical }

// Primitive is any of the scalar Avro types, optionally carrying a logical
// overlay (uuid on string, date/time-millis/time-micros on int/long,
// timestamp-millis/micros and their local variants on long).
type Primitive struct {
	base
}

// ArraySchema is an Avro array-of-T.
type ArraySchema struct {
	base
	Items Schema
}

// MapSchema is an Avro map-of-string-to-T.
type MapSchema struct {
	base
	Values Schema
}

// UnionSchema is an ordered list of candidate branch schemas. Deserialising
// against a union tries each branch in declaration order (spec: first-match
// wins).
type UnionSchema struct {
	base
	Branches []Schema
}

// Field is one named, defaulted field of a Record, in declaration order.
type Field struct {
	Name       string
	Type       Schema
	HasDefault bool
	Default    interface{} // raw JSON-decoded default value
}

// RecordSchema is an ordered sequence of named fields.
type RecordSchema struct {
	base
	Name   string
	Fields []Field
}

// EnumSchema is an ordered list of symbols.
type EnumSchema struct {
	base
	Name    string
	Symbols []string
}

// FixedSchema is a fixed-length byte sequence, optionally a decimal.
type FixedSchema struct {
	base
	Name string
	Size int
	// Precision/Scale are populated when Logical() == LogicalDecimal.
	Precision int
	Scale     int
}

// BytesSchema is the bytes primitive, optionally a decimal.
type BytesSchema struct {
	base
	Precision int
	Scale     int
}

// rawSchema mirrors the JSON shape of a schema-registry schema document.
// Unexported; used only during Parse.
type rawSchema struct {
	Type        jsoniter.RawMessage `json:"type"`
	Items       jsoniter.RawMessage `json:"items"`
	Values      jsoniter.RawMessage `json:"values"`
	Name        string              `json:"name"`
	Fields      []rawField          `json:"fields"`
	Symbols     []string            `json:"symbols"`
	Size        int                 `json:"size"`
	LogicalType string              `json:"logicalType"`
	Precision   int                 `json:"precision"`
	Scale       int                 `json:"scale"`
}

type rawField struct {
	Name    string              `json:"name"`
	Type    jsoniter.RawMessage `json:"type"`
	Default *jsoniter.RawMessage `json:"default"`
}

// Parse parses a schema-registry schema document (the `schema` field's raw
// JSON text, which is itself either a bare type name string, an array
// (union), or an object) into an immutable Schema tree.
//
// Parse is total over the supported Avro type system; schema constructs this
// package cannot represent (duration, named-type references/recursion,
// nanosecond-precision timestamps) return an error rather than panicking,
// per spec: "a schema the deserialiser cannot represent causes a startup
// error, never a runtime crash on a payload".
func Parse(raw []byte) (Schema, error) {
	return parseNode(raw, map[string]Schema{})
}

func parseNode(raw []byte, named map[string]Schema) (Schema, error) {
	var asString string
	if err := jsoniter.Unmarshal(raw, &asString); err == nil {
		return parsePrimitiveName(asString, named)
	}

	var asArray []jsoniter.RawMessage
	if err := jsoniter.Unmarshal(raw, &asArray); err == nil {
		branches := make([]Schema, 0, len(asArray))
		for _, b := range asArray {
			s, err := parseNode(b, named)
			if err != nil {
				return nil, err
			}
			branches = append(branches, s)
		}
		return &UnionSchema{base: base{kind: Union}, Branches: branches}, nil
	}

	var r rawSchema
	if err := jsoniter.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("schema: invalid schema node: %w", err)
	}
	return parseObject(r, named)
}

func parsePrimitiveName(name string, named map[string]Schema) (Schema, error) {
	if _, ok := named[name]; ok {
		return nil, fmt.Errorf("schema: named type reference to %q is not supported", name)
	}
	switch name {
	case "null":
		return &Primitive{base{kind: Null}}, nil
	case "boolean":
		return &Primitive{base{kind: Boolean}}, nil
	case "int":
		return &Primitive{base{kind: Int}}, nil
	case "long":
		return &Primitive{base{kind: Long}}, nil
	case "float":
		return &Primitive{base{kind: Float}}, nil
	case "double":
		return &Primitive{base{kind: Double}}, nil
	case "bytes":
		return &BytesSchema{base: base{kind: Bytes}}, nil
	case "string":
		return &Primitive{base{kind: String}}, nil
	}
	return nil, fmt.Errorf("schema: unsupported named reference %q (recursive refs are not supported)", name)
}

func parseObject(r rawSchema, named map[string]Schema) (Schema, error) {
	var typeName string
	if err := jsoniter.Unmarshal(r.Type, &typeName); err != nil {
		// "type" may itself be nested (e.g. {"type": {"type": "array", ...}})
		return parseNode(r.Type, named)
	}

	logical, err := parseLogical(r.LogicalType)
	if err != nil {
		return nil, err
	}

	switch typeName {
	case "array":
		items, err := parseNode(r.Items, named)
		if err != nil {
			return nil, err
		}
		return &ArraySchema{base: base{kind: Array}, Items: items}, nil
	case "map":
		values, err := parseNode(r.Values, named)
		if err != nil {
			return nil, err
		}
		return &MapSchema{base: base{kind: Map}, Values: values}, nil
	case "record", "error":
		rec := &RecordSchema{base: base{kind: Record}, Name: r.Name}
		for _, f := range r.Fields {
			fs, err := parseNode(f.Type, named)
			if err != nil {
				return nil, err
			}
			field := Field{Name: f.Name, Type: fs}
			if f.Default != nil {
				field.HasDefault = true
				var def interface{}
				if err := jsoniter.Unmarshal(*f.Default, &def); err != nil {
					return nil, fmt.Errorf("schema: field %q has invalid default: %w", f.Name, err)
				}
				field.Default = def
			}
			rec.Fields = append(rec.Fields, field)
		}
		if rec.Name != "" {
			named[rec.Name] = rec
		}
		return rec, nil
	case "enum":
		e := &EnumSchema{base: base{kind: Enum}, Name: r.Name, Symbols: r.Symbols}
		if e.Name != "" {
			named[e.Name] = e
		}
		return e, nil
	case "fixed":
		f := &FixedSchema{base: base{kind: Fixed, logical: logical}, Name: r.Name, Size: r.Size}
		if logical == LogicalDecimal {
			f.Precision, f.Scale = r.Precision, r.Scale
		}
		if f.Name != "" {
			named[f.Name] = f
		}
		return f, nil
	case "bytes":
		b := &BytesSchema{base: base{kind: Bytes, logical: logical}}
		if logical == LogicalDecimal {
			b.Precision, b.Scale = r.Precision, r.Scale
		}
		return b, nil
	case "int", "long":
		kind := Int
		if typeName == "long" {
			kind = Long
		}
		return &Primitive{base{kind: kind, logical: logical}}, nil
	case "string":
		return &Primitive{base{kind: String, logical: logical}}, nil
	case "null":
		return &Primitive{base{kind: Null}}, nil
	case "boolean":
		return &Primitive{base{kind: Boolean}}, nil
	case "float":
		return &Primitive{base{kind: Float}}, nil
	case "double":
		return &Primitive{base{kind: Double}}, nil
	case "duration":
		return nil, fmt.Errorf("schema: logical type %q is not supported", "duration")
	}
	return nil, fmt.Errorf("schema: unsupported type %q", typeName)
}

func parseLogical(name string) (Logical, error) {
	switch name {
	case "":
		return NoLogical, nil
	case "uuid":
		return LogicalUUID, nil
	case "date":
		return LogicalDate, nil
	case "time-millis":
		return LogicalTimeMillis, nil
	case "time-micros":
		return LogicalTimeMicros, nil
	case "timestamp-millis":
		return LogicalTimestampMillis, nil
	case "timestamp-micros":
		return LogicalTimestampMicros, nil
	case "local-timestamp-millis":
		return LogicalLocalTimestampMillis, nil
	case "local-timestamp-micros":
		return LogicalLocalTimestampMicros, nil
	case "decimal":
		return LogicalDecimal, nil
	case "duration", "timestamp-nanos", "local-timestamp-nanos":
		return 0, fmt.Errorf("schema: logical type %q is not supported", name)
	}
	// Unknown logical types are ignored per the Avro spec (fall back to the
	// underlying primitive), matching goavro's own permissive behaviour.
	return NoLogical, nil
}

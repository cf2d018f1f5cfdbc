// Package value implements the typed value tree values are deserialised
// into and serialised out of: a discriminated union mirroring the shape of
// an Avro schema (null, bool, i32, i64, f32, f64, bytes, string, array, map,
// union, record, enum, fixed, decimal, uuid, date, time-millis, time-micros,
// timestamp-millis/micros and their local variants).
package value

// Value is implemented by every concrete typed-value variant in this
// package. It carries no behaviour; it exists purely to close the set of
// types a Schema can produce.
type Value interface {
	isValue()
}

type Null struct{}

func (Null) isValue() {}

type Bool bool

func (Bool) isValue() {}

type Int int32

func (Int) isValue() {}

type Long int64

func (Long) isValue() {}

type Float float32

func (Float) isValue() {}

type Double float64

func (Double) isValue() {}

type Bytes []byte

func (Bytes) isValue() {}

type String string

func (String) isValue() {}

type Array []Value

func (Array) isValue() {}

// Map is unordered, per spec; Go's map type already has no defined
// iteration order.
type Map map[string]Value

func (Map) isValue() {}

// Union carries the index of the branch that matched (first-match-wins,
// spec §9) alongside the decoded inner value.
type Union struct {
	Index int
	Inner Value
}

func (Union) isValue() {}

// Field is one (name, value) pair of a Record, in schema declaration order.
type Field struct {
	Name  string
	Value Value
}

// Record preserves field order, per spec's "produce a value that preserves
// the schema's field order" invariant.
type Record struct {
	Fields []Field
}

func (Record) isValue() {}

// Enum carries both the chosen index and its symbol text.
type Enum struct {
	Index  int
	Symbol string
}

func (Enum) isValue() {}

// Fixed is a fixed-size byte sequence; Size is redundant with len(Bytes) but
// kept for clarity at call sites and symmetry with the Schema side.
type Fixed struct {
	Size  int
	Bytes []byte
}

func (Fixed) isValue() {}

// Decimal is the minimal two's-complement big-endian encoding of a
// scale-rescaled arbitrary-precision number.
type Decimal []byte

func (Decimal) isValue() {}

type UUID string

func (UUID) isValue() {}

// Date is days since the Unix epoch.
type Date int32

func (Date) isValue() {}

// TimeMillis is milliseconds since midnight.
type TimeMillis int32

func (TimeMillis) isValue() {}

// TimeMicros is microseconds since midnight.
type TimeMicros int64

func (TimeMicros) isValue() {}

// TimestampMillis is milliseconds since the Unix epoch (UTC).
type TimestampMillis int64

func (TimestampMillis) isValue() {}

// TimestampMicros is microseconds since the Unix epoch (UTC).
type TimestampMicros int64

func (TimestampMicros) isValue() {}

// LocalTimestampMillis is milliseconds since the Unix epoch, naive wall
// clock (no offset shift applied).
type LocalTimestampMillis int64

func (LocalTimestampMillis) isValue() {}

// LocalTimestampMicros is microseconds since the Unix epoch, naive wall
// clock (no offset shift applied).
type LocalTimestampMicros int64

func (LocalTimestampMicros) isValue() {}

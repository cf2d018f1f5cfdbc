package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroliko/kafka-proxy/internal/avro/schema"
	"github.com/kroliko/kafka-proxy/internal/avro/value"
)

func mustParse(t *testing.T, raw string) schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(raw))
	require.NoError(t, err)
	return s
}

func TestDeserializeScenario1Int(t *testing.T) {
	s := mustParse(t, `{"type":"int"}`)
	v, err := Deserialize(s, []byte(`123`))
	require.NoError(t, err)
	assert.Equal(t, value.Int(123), v)
}

func TestDeserializeScenario2Enum(t *testing.T) {
	s := mustParse(t, `{"type":"enum","name":"T","symbols":["A","B","C"]}`)

	v, err := Deserialize(s, []byte(`"B"`))
	require.NoError(t, err)
	assert.Equal(t, value.Enum{Index: 1, Symbol: "B"}, v)

	v, err = Deserialize(s, []byte(`2`))
	require.NoError(t, err)
	assert.Equal(t, value.Enum{Index: 2, Symbol: "C"}, v)

	_, err = Deserialize(s, []byte(`"X"`))
	assert.Error(t, err)
}

func TestDeserializeScenario3Decimal(t *testing.T) {
	s := mustParse(t, `{"type":"bytes","logicalType":"decimal","precision":9,"scale":6}`)
	v, err := Deserialize(s, []byte(`123.456789`))
	require.NoError(t, err)
	assert.Equal(t, value.Decimal([]byte{0x07, 0x5B, 0xCD, 0x15}), v)
}

func TestDeserializeScenario4Date(t *testing.T) {
	s := mustParse(t, `{"type":"int","logicalType":"date"}`)
	v, err := Deserialize(s, []byte(`"2001-02-03T12:34:56.789Z"`))
	require.NoError(t, err)
	assert.Equal(t, value.Date(11356), v)
}

func TestDeserializeScenario5Union(t *testing.T) {
	s := mustParse(t, `["null","int","string"]`)

	v, err := Deserialize(s, []byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, value.Union{Index: 0, Inner: value.Null{}}, v)

	v, err = Deserialize(s, []byte(`123`))
	require.NoError(t, err)
	assert.Equal(t, value.Union{Index: 1, Inner: value.Int(123)}, v)

	v, err = Deserialize(s, []byte(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, value.Union{Index: 2, Inner: value.String("x")}, v)
}

func TestDeserializeUnionFirstMatchWins(t *testing.T) {
	// 123 satisfies int, long and double; first declared branch must win.
	s := mustParse(t, `["int","long","double"]`)
	v, err := Deserialize(s, []byte(`123`))
	require.NoError(t, err)
	u, ok := v.(value.Union)
	require.True(t, ok)
	assert.Equal(t, 0, u.Index)
	assert.Equal(t, value.Int(123), u.Inner)
}

func TestDeserializeRecordFieldOrderAndDefaults(t *testing.T) {
	s := mustParse(t, `{"type":"record","name":"R","fields":[
		{"name":"a","type":"string"},
		{"name":"b","type":"int","default":42},
		{"name":"c","type":"boolean"}
	]}`)
	v, err := Deserialize(s, []byte(`{"c":true,"a":"hi","extra":"ignored"}`))
	require.NoError(t, err)
	rec := v.(value.Record)
	require.Len(t, rec.Fields, 3)
	assert.Equal(t, "a", rec.Fields[0].Name)
	assert.Equal(t, value.String("hi"), rec.Fields[0].Value)
	assert.Equal(t, "b", rec.Fields[1].Name)
	assert.Equal(t, value.Int(42), rec.Fields[1].Value)
	assert.Equal(t, "c", rec.Fields[2].Name)
	assert.Equal(t, value.Bool(true), rec.Fields[2].Value)
}

func TestDeserializeRecordMissingFieldNoDefault(t *testing.T) {
	s := mustParse(t, `{"type":"record","name":"R","fields":[{"name":"a","type":"string"}]}`)
	_, err := Deserialize(s, []byte(`{}`))
	assert.Error(t, err)
}

func TestDeserializeFixed(t *testing.T) {
	s := mustParse(t, `{"type":"fixed","name":"F","size":3}`)
	v, err := Deserialize(s, []byte(`"YWJj"`)) // base64("abc")
	require.NoError(t, err)
	assert.Equal(t, value.Fixed{Size: 3, Bytes: []byte("abc")}, v)

	_, err = Deserialize(s, []byte(`"YWI="`)) // base64("ab"), wrong length
	assert.Error(t, err)
}

func TestDeserializeArrayAndMap(t *testing.T) {
	arrSchema := mustParse(t, `{"type":"array","items":"int"}`)
	v, err := Deserialize(arrSchema, []byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(1), value.Int(2), value.Int(3)}, v)

	mapSchema := mustParse(t, `{"type":"map","values":"string"}`)
	v, err = Deserialize(mapSchema, []byte(`{"x":"1","y":"2"}`))
	require.NoError(t, err)
	m := v.(value.Map)
	assert.Equal(t, value.String("1"), m["x"])
	assert.Equal(t, value.String("2"), m["y"])
}

func TestDeserializeOutOfRangeInt(t *testing.T) {
	s := mustParse(t, `{"type":"int"}`)
	_, err := Deserialize(s, []byte(`99999999999`))
	assert.Error(t, err)
}

func TestDeserializeScientificNotation(t *testing.T) {
	s := mustParse(t, `{"type":"long"}`)
	v, err := Deserialize(s, []byte(`1.23e4`))
	require.NoError(t, err)
	assert.Equal(t, value.Long(12300), v)
}

func TestDeserializeUUID(t *testing.T) {
	s := mustParse(t, `{"type":"string","logicalType":"uuid"}`)
	v, err := Deserialize(s, []byte(`"f47ac10b-58cc-4372-a567-0e02b2c3d479"`))
	require.NoError(t, err)
	assert.Equal(t, value.UUID("f47ac10b-58cc-4372-a567-0e02b2c3d479"), v)

	_, err = Deserialize(s, []byte(`"not-a-uuid"`))
	assert.Error(t, err)
}

func TestDeserializeTimestampMillis(t *testing.T) {
	s := mustParse(t, `{"type":"long","logicalType":"timestamp-millis"}`)
	v, err := Deserialize(s, []byte(`"1970-01-01T00:00:01.000Z"`))
	require.NoError(t, err)
	assert.Equal(t, value.TimestampMillis(1000), v)
}

func TestDeserializeLocalTimestampIgnoresOffset(t *testing.T) {
	s := mustParse(t, `{"type":"long","logicalType":"local-timestamp-millis"}`)
	v, err := Deserialize(s, []byte(`"1970-01-01T01:00:00.000+01:00"`))
	require.NoError(t, err)
	// Naive wall clock: treat 01:00:00 as if it were UTC, i.e. 3600000ms,
	// even though the instant it denotes is actually 1970-01-01T00:00:00Z.
	assert.Equal(t, value.LocalTimestampMillis(3600000), v)
}

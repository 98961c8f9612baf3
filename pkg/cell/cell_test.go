package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeCellsRoundTrip(t *testing.T) {
	types := []DataType{NewI64(), NewText(), NewBool(), NewNull(NewF64()).Type}
	cells := []Cell{
		NewI64Cell(42),
		NewTextCell("hello"),
		NewBoolCell(true),
		NewNull(NewF64()),
	}
	buf := SerializeCells(cells)
	got, err := DeserializeCells(buf, types)
	require.NoError(t, err)
	require.Len(t, got, len(cells))

	v0, err := got[0].AsI64()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v0)

	v1, err := got[1].AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello", v1)

	v2, err := got[2].AsBool()
	require.NoError(t, err)
	assert.True(t, v2)

	assert.True(t, got[3].Null)
}

func TestSerializeCellsEmbeddedZeroByte(t *testing.T) {
	cells := []Cell{NewBinaryCell([]byte{0x00, 0x01, 0x00, 0x02})}
	buf := SerializeCells(cells)
	got, err := DeserializeCells(buf, []DataType{NewBinary()})
	require.NoError(t, err)
	raw, err := got[0].AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02}, raw)
}

func TestPatchPrefixCount(t *testing.T) {
	prefix := SerializeCells([]Cell{NewI32Cell(7)})
	patched := PatchPrefixCount(prefix, 3)
	assert.EqualValues(t, 3, patched[0])
	// original buffer must be unmodified
	assert.EqualValues(t, 1, prefix[0])
	// remaining bytes unchanged
	assert.Equal(t, prefix[1:], patched[1:])
}

func TestDeserializeCellsCountMismatch(t *testing.T) {
	buf := SerializeCells([]Cell{NewI32Cell(1), NewI32Cell(2)})
	_, err := DeserializeCells(buf, []DataType{NewI32()})
	require.Error(t, err)
}

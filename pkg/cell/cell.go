package cell

import (
	"fmt"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/serializer"
)

// Cell is one typed SQL value. Raw holds the order-preserving encoding
// produced by serializer's Encode* helpers; Raw is nil when Null is true.
// A Cell may borrow Raw from a slice owned by the KV store (zero-copy scan
// path) or own freshly allocated bytes (write path) — callers that need to
// retain a Cell past the lifetime of a scan buffer should call Clone.
type Cell struct {
	Type DataType
	Null bool
	Raw  []byte
}

func NewNull(t DataType) Cell { return Cell{Type: t, Null: true} }

func NewBoolCell(v bool) Cell {
	b := byte(0)
	if v {
		b = 1
	}
	return Cell{Type: NewBool(), Raw: []byte{b}}
}

func NewI32Cell(v int32) Cell {
	return Cell{Type: NewI32(), Raw: serializer.EncodeOrderedInt32(v)}
}

func NewI64Cell(v int64) Cell {
	return Cell{Type: NewI64(), Raw: serializer.EncodeOrderedInt64(v)}
}

func NewF32Cell(v float32) Cell {
	return Cell{Type: NewF32(), Raw: serializer.EncodeOrderedFloat32(v)}
}

func NewF64Cell(v float64) Cell {
	return Cell{Type: NewF64(), Raw: serializer.EncodeOrderedFloat64(v)}
}

func NewTextCell(v string) Cell {
	return Cell{Type: NewText(), Raw: []byte(v)}
}

func NewVarcharCell(v string, length int) Cell {
	return Cell{Type: NewVarchar(length), Raw: []byte(v)}
}

func NewBinaryCell(v []byte) Cell {
	return Cell{Type: NewBinary(), Raw: v}
}

// Clone returns a Cell whose Raw bytes are independent of the source buffer.
func (c Cell) Clone() Cell {
	if c.Null || c.Raw == nil {
		return c
	}
	raw := make([]byte, len(c.Raw))
	copy(raw, c.Raw)
	c.Raw = raw
	return c
}

func (c Cell) AsBool() (bool, error) {
	if err := c.checkKind(Bool); err != nil {
		return false, err
	}
	return c.Raw[0] != 0, nil
}

func (c Cell) AsI32() (int32, error) {
	if err := c.checkKind(I32); err != nil {
		return 0, err
	}
	return serializer.DecodeOrderedInt32(c.Raw)
}

func (c Cell) AsI64() (int64, error) {
	if err := c.checkKind(I64); err != nil {
		return 0, err
	}
	return serializer.DecodeOrderedInt64(c.Raw)
}

func (c Cell) AsF32() (float32, error) {
	if err := c.checkKind(F32); err != nil {
		return 0, err
	}
	return serializer.DecodeOrderedFloat32(c.Raw)
}

func (c Cell) AsF64() (float64, error) {
	if err := c.checkKind(F64); err != nil {
		return 0, err
	}
	return serializer.DecodeOrderedFloat64(c.Raw)
}

func (c Cell) AsText() (string, error) {
	if c.Type.Kind != Text && c.Type.Kind != Varchar {
		return "", arenaerrors.UnsupportedDataType(fmt.Sprintf("cannot read %s as text", c.Type))
	}
	if c.Null {
		return "", fmt.Errorf("cell: value is null")
	}
	return string(c.Raw), nil
}

func (c Cell) AsBytes() ([]byte, error) {
	if c.Null {
		return nil, fmt.Errorf("cell: value is null")
	}
	return c.Raw, nil
}

func (c Cell) checkKind(k Kind) error {
	if c.Type.Kind != k {
		return arenaerrors.UnsupportedDataType(fmt.Sprintf("expected %s, got %s", k, c.Type.Kind))
	}
	if c.Null {
		return fmt.Errorf("cell: value is null")
	}
	return nil
}

// orderedPrefix returns the order-preserving representation of c used when
// it participates in a composite index or heap key: fixed-width types are
// already order-preserving (Raw is used verbatim); variable-length types
// are escaped+terminated via serializer.EncodeOrderedBytes so that they
// remain self-delimiting within a concatenated key.
func (c Cell) orderedPrefix() []byte {
	switch c.Type.Kind {
	case Bool, I32, I64, F32, F64:
		return c.Raw
	default:
		return serializer.EncodeOrderedBytes(c.Raw)
	}
}

// fixedWidth returns the encoded width of fixed-width kinds, or -1 for
// variable-length kinds that must be decoded via their terminator.
func fixedWidth(k Kind) int {
	switch k {
	case Bool:
		return 1
	case I32, F32:
		return 4
	case I64, F64:
		return 8
	default:
		return -1
	}
}

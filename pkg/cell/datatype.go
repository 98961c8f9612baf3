// Package cell implements the typed SQL value codec that sits between the
// ordered KV store and the Arrow columnar execution layer (spec.md §3.2,
// §4.3): a tagged DataType/Cell pair that serializes to order-preserving
// bytes for heap and index keys, and converts to/from Arrow column arrays
// at the query-execution boundary.
package cell

import "fmt"

// Kind tags the variant of a DataType. Kept as a sum type rather than an
// interface hierarchy, per spec.md §9's "tagged variants where possible"
// guidance for everything but the genuinely pluggable components.
type Kind uint8

const (
	Bool Kind = iota
	I32
	I64
	F32
	F64
	Text
	Varchar
	Binary
	List
	// Opaque carries columns the planner cannot reason about natively
	// (JSON/vector payloads smuggled through as DECIMAL(76,1) on the wire,
	// spec.md §9) tagged with their logical name instead of silently
	// treating them as raw bytes.
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "BOOL"
	case I32:
		return "I32"
	case I64:
		return "I64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case Text:
		return "TEXT"
	case Varchar:
		return "VARCHAR"
	case Binary:
		return "BINARY"
	case List:
		return "LIST"
	case Opaque:
		return "OPAQUE"
	default:
		return "UNKNOWN"
	}
}

// DataType describes the type of a column or cell. VarcharLen only applies
// to Kind Varchar, Item only to Kind List, OpaqueName only to Kind Opaque.
type DataType struct {
	Kind       Kind
	VarcharLen int
	Item       *DataType
	OpaqueName string
}

func NewBool() DataType { return DataType{Kind: Bool} }
func NewI32() DataType  { return DataType{Kind: I32} }
func NewI64() DataType  { return DataType{Kind: I64} }
func NewF32() DataType  { return DataType{Kind: F32} }
func NewF64() DataType  { return DataType{Kind: F64} }
func NewText() DataType { return DataType{Kind: Text} }

func NewVarchar(length int) DataType {
	return DataType{Kind: Varchar, VarcharLen: length}
}

func NewBinary() DataType { return DataType{Kind: Binary} }

func NewList(item DataType) DataType {
	return DataType{Kind: List, Item: &item}
}

func NewOpaque(logicalName string) DataType {
	return DataType{Kind: Opaque, OpaqueName: logicalName}
}

func (d DataType) String() string {
	switch d.Kind {
	case Varchar:
		return fmt.Sprintf("VARCHAR(%d)", d.VarcharLen)
	case List:
		return fmt.Sprintf("LIST(%s)", d.Item)
	case Opaque:
		return fmt.Sprintf("OPAQUE(%s)", d.OpaqueName)
	default:
		return d.Kind.String()
	}
}

// Equal reports whether d and other describe the same type.
func (d DataType) Equal(other DataType) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case Varchar:
		return d.VarcharLen == other.VarcharLen
	case List:
		return d.Item != nil && other.Item != nil && d.Item.Equal(*other.Item)
	case Opaque:
		return d.OpaqueName == other.OpaqueName
	default:
		return true
	}
}

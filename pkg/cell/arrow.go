package cell

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
)

// ArrowType maps a DataType to the Arrow type used on the QE boundary
// (spec.md §4.3, §6.2). List and Opaque columns are carried as raw bytes:
// the planner-facing OID mapping (pkg/session) is what gives Opaque
// columns their JSONB/DECIMAL(76,1) wire shape; this package only needs a
// byte-stable Arrow representation.
func ArrowType(d DataType) arrow.DataType {
	switch d.Kind {
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case I32:
		return arrow.PrimitiveTypes.Int32
	case I64:
		return arrow.PrimitiveTypes.Int64
	case F32:
		return arrow.PrimitiveTypes.Float32
	case F64:
		return arrow.PrimitiveTypes.Float64
	case Text, Varchar:
		return arrow.BinaryTypes.String
	case Binary, List, Opaque:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.Binary
	}
}

// ColumnArrayBuilder accumulates Cells of one column into an Arrow array.
// The Noop implementation (see NewColumnArrayBuilder) lets a scan skip
// materializing columns the projection did not request.
type ColumnArrayBuilder interface {
	Append(c Cell) error
	NewArray() arrow.Array
	Release()
}

// NewColumnArrayBuilder returns the ColumnArrayBuilder for t. When
// projected is false it returns a Noop builder that discards every Append
// and whose NewArray panics if ever called — scans must not request an
// array for a column they did not project.
func NewColumnArrayBuilder(mem memory.Allocator, t DataType, projected bool) ColumnArrayBuilder {
	if !projected {
		return noopBuilder{}
	}
	return &typedBuilder{typ: t, builder: array.NewBuilder(mem, ArrowType(t))}
}

type noopBuilder struct{}

func (noopBuilder) Append(Cell) error { return nil }
func (noopBuilder) NewArray() arrow.Array {
	panic("cell: NewArray called on a Noop column builder")
}
func (noopBuilder) Release() {}

type typedBuilder struct {
	typ     DataType
	builder array.Builder
}

func (b *typedBuilder) Release() { b.builder.Release() }

func (b *typedBuilder) NewArray() arrow.Array { return b.builder.NewArray() }

func (b *typedBuilder) Append(c Cell) error {
	if c.Null {
		b.builder.AppendNull()
		return nil
	}
	switch b.typ.Kind {
	case Bool:
		v, err := c.AsBool()
		if err != nil {
			return err
		}
		b.builder.(*array.BooleanBuilder).Append(v)
	case I32:
		v, err := c.AsI32()
		if err != nil {
			return err
		}
		b.builder.(*array.Int32Builder).Append(v)
	case I64:
		v, err := c.AsI64()
		if err != nil {
			return err
		}
		b.builder.(*array.Int64Builder).Append(v)
	case F32:
		v, err := c.AsF32()
		if err != nil {
			return err
		}
		b.builder.(*array.Float32Builder).Append(v)
	case F64:
		v, err := c.AsF64()
		if err != nil {
			return err
		}
		b.builder.(*array.Float64Builder).Append(v)
	case Text, Varchar:
		v, err := c.AsText()
		if err != nil {
			return err
		}
		b.builder.(*array.StringBuilder).Append(v)
	case Binary, List, Opaque:
		v, err := c.AsBytes()
		if err != nil {
			return err
		}
		b.builder.(*array.BinaryBuilder).Append(v)
	default:
		return arenaerrors.UnsupportedDataType(b.typ.String())
	}
	return nil
}

// ArrayToCells is ArenaSQL's array_ref_to_vec (spec.md §4.3): it encodes one
// Arrow column into a dense []Cell, enforcing nullability. arr == nil means
// the column is entirely absent from the batch, which is only legal for
// nullable columns (the caller is expected to backfill a column's default
// otherwise, before reaching this function).
func ArrayToCells(table, column string, arr arrow.Array, t DataType, nullable bool) ([]Cell, error) {
	if arr == nil {
		if !nullable {
			return nil, arenaerrors.NullConstraintViolation(table, column)
		}
		return nil, nil
	}
	cells := make([]Cell, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			if !nullable {
				return nil, arenaerrors.NullConstraintViolation(table, column)
			}
			cells[i] = NewNull(t)
			continue
		}
		c, err := cellFromArrow(arr, i, t)
		if err != nil {
			return nil, err
		}
		cells[i] = c
	}
	return cells, nil
}

func cellFromArrow(arr arrow.Array, i int, t DataType) (Cell, error) {
	switch t.Kind {
	case Bool:
		return NewBoolCell(arr.(*array.Boolean).Value(i)), nil
	case I32:
		return NewI32Cell(arr.(*array.Int32).Value(i)), nil
	case I64:
		return NewI64Cell(arr.(*array.Int64).Value(i)), nil
	case F32:
		return NewF32Cell(arr.(*array.Float32).Value(i)), nil
	case F64:
		return NewF64Cell(arr.(*array.Float64).Value(i)), nil
	case Text:
		return NewTextCell(arr.(*array.String).Value(i)), nil
	case Varchar:
		return NewVarcharCell(arr.(*array.String).Value(i), t.VarcharLen), nil
	case Binary, List, Opaque:
		return Cell{Type: t, Raw: arr.(*array.Binary).Value(i)}, nil
	default:
		return Cell{}, arenaerrors.UnsupportedDataType(t.String())
	}
}

// ColumnSpec is the minimal per-column shape RowConverter needs, decoupled
// from pkg/catalog's richer Column to avoid an import cycle (pkg/catalog
// itself depends on pkg/cell for DataType).
type ColumnSpec struct {
	Name     string
	Type     DataType
	Nullable bool
}

// RowConverter transposes column-major Arrow record batches into row-major
// typed rows (spec.md §4.3's RowConverter::convert_to_rows).
type RowConverter struct {
	Columns []ColumnSpec
}

// ConvertToRows converts batch into one []Cell per row, in table-column
// order. Only the table's declared columns are returned: no ctid cell is
// appended, and there is no option to request one.
func (rc *RowConverter) ConvertToRows(table string, batch arrow.Record) ([][]Cell, error) {
	numCols := len(rc.Columns)
	columnCells := make([][]Cell, numCols)
	numRows := -1
	for i, col := range rc.Columns {
		var arr arrow.Array
		if idx := findField(batch.Schema(), col.Name); idx >= 0 {
			arr = batch.Column(idx)
		}
		cells, err := ArrayToCells(table, col.Name, arr, col.Type, col.Nullable)
		if err != nil {
			return nil, err
		}
		columnCells[i] = cells
		if arr != nil {
			if numRows == -1 {
				numRows = arr.Len()
			} else if numRows != arr.Len() {
				return nil, fmt.Errorf("cell: column %q has %d rows, expected %d", col.Name, arr.Len(), numRows)
			}
		}
	}
	if numRows == -1 {
		numRows = int(batch.NumRows())
	}

	rows := make([][]Cell, numRows)
	for r := 0; r < numRows; r++ {
		row := make([]Cell, numCols)
		for c := 0; c < numCols; c++ {
			if columnCells[c] == nil {
				row[c] = NewNull(rc.Columns[c].Type)
			} else {
				row[c] = columnCells[c][r]
			}
		}
		rows[r] = row
	}
	return rows, nil
}

func findField(schema *arrow.Schema, name string) int {
	for i, f := range schema.Fields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}

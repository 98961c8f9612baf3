package catalog

import (
	"encoding/binary"
	"fmt"

	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/serializer"
)

// Table serialization uses the FixedInt mode (spec.md §4.2): every
// integer field — table/index/column IDs, counts, lengths — is a
// fixed-width big-endian integer, since catalog metadata is small and a
// stable width is simpler to reason about than compactness.

func SerializeTable(t *Table) []byte {
	var buf []byte
	buf = append(buf, serializer.EncodeFixedUint16(uint16(t.ID))...)
	buf = appendString(buf, t.Name)

	buf = append(buf, serializer.EncodeFixedUint16(uint16(len(t.Columns)))...)
	for _, c := range t.Columns {
		buf = append(buf, byte(c.ID))
		buf = appendString(buf, c.Name)
		buf = appendDataType(buf, c.Type)
		buf = append(buf, boolByte(c.Nullable))
		if c.Default != nil {
			buf = append(buf, 1)
			buf = appendBytes(buf, c.Default.Raw)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = append(buf, serializer.EncodeFixedUint16(uint16(len(t.Constraints)))...)
	for _, cons := range t.Constraints {
		buf = append(buf, byte(cons.Kind))
		buf = append(buf, byte(len(cons.Projection)))
		for _, col := range cons.Projection {
			buf = append(buf, byte(col))
		}
	}

	buf = append(buf, serializer.EncodeFixedUint16(uint16(len(t.Indexes)))...)
	for _, idx := range t.Indexes {
		buf = append(buf, serializer.EncodeFixedUint32(uint32(idx.ID))...)
		buf = appendString(buf, idx.Name)
		buf = append(buf, boolByte(idx.AllowDuplicates))
		buf = append(buf, byte(len(idx.Columns)))
		for _, col := range idx.Columns {
			buf = append(buf, byte(col))
		}
	}

	return buf
}

func DeserializeTable(buf []byte) (*Table, error) {
	r := &reader{buf: buf}

	id, err := r.fixed16()
	if err != nil {
		return nil, err
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}

	numCols, err := r.fixed16()
	if err != nil {
		return nil, err
	}
	columns := make([]Column, numCols)
	for i := range columns {
		cid, err := r.byte_()
		if err != nil {
			return nil, err
		}
		cname, err := r.str()
		if err != nil {
			return nil, err
		}
		dt, err := readDataType(r)
		if err != nil {
			return nil, err
		}
		nullable, err := r.byte_()
		if err != nil {
			return nil, err
		}
		hasDefault, err := r.byte_()
		if err != nil {
			return nil, err
		}
		col := Column{ID: ColumnID(cid), Name: cname, Type: dt, Nullable: nullable != 0}
		if hasDefault != 0 {
			raw, err := r.bytesField()
			if err != nil {
				return nil, err
			}
			c := cell.Cell{Type: dt, Raw: raw}
			col.Default = &c
		}
		columns[i] = col
	}

	numCons, err := r.fixed16()
	if err != nil {
		return nil, err
	}
	constraints := make([]Constraint, numCons)
	for i := range constraints {
		kind, err := r.byte_()
		if err != nil {
			return nil, err
		}
		n, err := r.byte_()
		if err != nil {
			return nil, err
		}
		proj := make([]ColumnID, n)
		for j := range proj {
			b, err := r.byte_()
			if err != nil {
				return nil, err
			}
			proj[j] = ColumnID(b)
		}
		constraints[i] = Constraint{Kind: ConstraintKind(kind), Projection: proj}
	}

	numIdx, err := r.fixed16()
	if err != nil {
		return nil, err
	}
	indexes := make([]TableIndex, numIdx)
	for i := range indexes {
		iid, err := r.fixed32()
		if err != nil {
			return nil, err
		}
		iname, err := r.str()
		if err != nil {
			return nil, err
		}
		allowDup, err := r.byte_()
		if err != nil {
			return nil, err
		}
		n, err := r.byte_()
		if err != nil {
			return nil, err
		}
		cols := make([]ColumnID, n)
		for j := range cols {
			b, err := r.byte_()
			if err != nil {
				return nil, err
			}
			cols[j] = ColumnID(b)
		}
		indexes[i] = TableIndex{ID: TableIndexID(iid), Name: iname, Columns: cols, AllowDuplicates: allowDup != 0}
	}

	return &Table{
		ID:          TableID(id),
		Name:        name,
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
	}, nil
}

func appendDataType(buf []byte, d cell.DataType) []byte {
	buf = append(buf, byte(d.Kind))
	switch d.Kind {
	case cell.Varchar:
		buf = append(buf, serializer.EncodeFixedUint32(uint32(d.VarcharLen))...)
	case cell.Opaque:
		buf = appendString(buf, d.OpaqueName)
	case cell.List:
		buf = appendDataType(buf, *d.Item)
	}
	return buf
}

func readDataType(r *reader) (cell.DataType, error) {
	k, err := r.byte_()
	if err != nil {
		return cell.DataType{}, err
	}
	d := cell.DataType{Kind: cell.Kind(k)}
	switch d.Kind {
	case cell.Varchar:
		n, err := r.fixed32()
		if err != nil {
			return cell.DataType{}, err
		}
		d.VarcharLen = int(n)
	case cell.Opaque:
		s, err := r.str()
		if err != nil {
			return cell.DataType{}, err
		}
		d.OpaqueName = s
	case cell.List:
		item, err := readDataType(r)
		if err != nil {
			return cell.DataType{}, err
		}
		d.Item = &item
	}
	return d, nil
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = append(buf, serializer.EncodeFixedUint32(uint32(len(b)))...)
	return append(buf, b...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// reader is a tiny cursor over a catalog-serialized buffer.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("catalog: unexpected end of buffer")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) fixed16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("catalog: truncated fixed16")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) fixed32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("catalog: truncated fixed32")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytesField() ([]byte, error) {
	n, err := r.fixed32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("catalog: truncated bytes field")
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

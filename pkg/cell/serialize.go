package cell

import "fmt"

// SerializeCells concatenates cells into a composite key suitable for a
// heap row value or an index-row key (spec.md §3.4, §6.3): a one-byte
// count prefix (the number of cells), followed by a one-byte null flag and
// the ordered encoding for each cell in order. Fixed-width cell kinds
// (Bool/I32/I64/F32/F64) contribute a fixed number of bytes; variable
// length kinds (Text/Varchar/Binary) are escaped and NUL-terminated so the
// whole sequence stays self-delimiting when further cells follow.
func SerializeCells(cells []Cell) []byte {
	out := []byte{byte(len(cells))}
	for _, c := range cells {
		if c.Null {
			out = append(out, 1)
			continue
		}
		out = append(out, 0)
		out = append(out, c.orderedPrefix()...)
	}
	return out
}

// DeserializeCells reverses SerializeCells given the expected column types
// in order (the count prefix is validated against len(types) but is not
// itself sufficient to recover types, since the wire format carries no
// per-cell type tag — that comes from the table's schema).
func DeserializeCells(buf []byte, types []DataType) ([]Cell, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("cell: empty serialized row")
	}
	count := int(buf[0])
	if count != len(types) {
		return nil, fmt.Errorf("cell: serialized cell count %d does not match %d expected columns", count, len(types))
	}
	pos := 1
	cells := make([]Cell, count)
	for i := 0; i < count; i++ {
		if pos >= len(buf) {
			return nil, fmt.Errorf("cell: truncated serialized row at cell %d", i)
		}
		isNull := buf[pos]
		pos++
		if isNull == 1 {
			cells[i] = NewNull(types[i])
			continue
		}
		raw, n, err := decodeOrderedPrefix(buf[pos:], types[i].Kind)
		if err != nil {
			return nil, fmt.Errorf("cell: decoding cell %d: %w", i, err)
		}
		cells[i] = Cell{Type: types[i], Raw: raw}
		pos += n
	}
	return cells, nil
}

func decodeOrderedPrefix(buf []byte, k Kind) ([]byte, int, error) {
	if w := fixedWidth(k); w >= 0 {
		if len(buf) < w {
			return nil, 0, fmt.Errorf("need %d bytes for %s, have %d", w, k, len(buf))
		}
		return buf[:w], w, nil
	}
	return decodeOrderedBytes(buf)
}

// decodeOrderedBytes mirrors serializer.DecodeOrderedBytes but returns the
// raw (un-escaped) bytes directly, matching SerializeCells' escaping.
func decodeOrderedBytes(buf []byte) ([]byte, int, error) {
	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x00 {
			out = append(out, buf[i])
			continue
		}
		if i+1 >= len(buf) {
			return nil, 0, fmt.Errorf("truncated ordered bytes")
		}
		switch buf[i+1] {
		case 0xFF:
			out = append(out, 0x00)
			i++
		case 0x00:
			return out, i + 2, nil
		default:
			return nil, 0, fmt.Errorf("invalid escape in ordered bytes")
		}
	}
	return nil, 0, fmt.Errorf("missing terminator in ordered bytes")
}

// PatchPrefixCount overwrites the one-byte cell-count prefix of a
// partially-projected serialized key with fullCount, the full column count
// of the index it will be compared against (spec.md §4.6 step 2). A
// prefix scan seeded with an equality projection over the leading k of n
// index columns serializes as a k-cell row; patching the count byte to n
// makes its bytes match the prefix of keys written by full n-column index
// entries, since the count byte is the only part of the encoding that
// differs between the two.
func PatchPrefixCount(buf []byte, fullCount int) []byte {
	if len(buf) == 0 {
		return buf
	}
	patched := make([]byte, len(buf))
	copy(patched, buf)
	patched[0] = byte(fullCount)
	return patched
}

// Package scan implements the scan/index-iteration engine: choosing
// between a full heap scan and a unique-index prefix scan, composite-key
// prefix construction (including the "patch the first byte" trick),
// residual filtering, and capped-batch Arrow materialization (spec.md
// §4.6).
package scan

import "github.com/arenasql/arenasql/pkg/cell"

// Op is a filter's comparison operator.
type Op uint8

const (
	Eq Op = iota
	Ne
	Lt
	Lte
	Gt
	Gte
)

// Filter is one predicate over a table column, referenced by its
// positional ordinal in the table's column list.
type Filter struct {
	ColumnOrdinal int
	Op            Op
	Value         cell.Cell
}

// Matches reports whether row (in table-column order) satisfies f. Only
// fixed-width numeric and text/binary comparisons are supported; List and
// Opaque columns can only be compared for equality/inequality of their raw
// bytes.
func (f Filter) Matches(row []cell.Cell) bool {
	c := row[f.ColumnOrdinal]
	if c.Null || f.Value.Null {
		return false
	}
	cmp := compareCells(c, f.Value)
	switch f.Op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	default:
		return false
	}
}

// compareCells orders two cells of the same type by their order-preserving
// raw encoding, which — by construction (pkg/cell, pkg/serializer) —
// matches the typed value's natural order.
func compareCells(a, b cell.Cell) int {
	la, lb := len(a.Raw), len(b.Raw)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a.Raw[i] != b.Raw[i] {
			if a.Raw[i] < b.Raw[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}

// ApplyResidual reports whether row satisfies every filter in filters —
// the post-scan check for predicates the chosen index prefix did not
// cover (spec.md §4.6 step 4).
func ApplyResidual(row []cell.Cell, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(row) {
			return false
		}
	}
	return true
}

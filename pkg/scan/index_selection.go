package scan

import "github.com/arenasql/arenasql/pkg/catalog"

// SelectIndex chooses the index whose column projection has the longest
// contiguous prefix covered by an Eq filter on every prefix column
// (spec.md §4.6 step 1). Ties are broken by lowest index ID. Returns
// ok=false if no index has a qualifying prefix of length >= 1, in which
// case the scanner falls back to a full heap scan.
func SelectIndex(table *catalog.Table, filters []Filter) (idx catalog.TableIndex, eqFilters []Filter, ok bool) {
	eqByOrdinal := make(map[int]Filter, len(filters))
	for _, f := range filters {
		if f.Op == Eq {
			eqByOrdinal[f.ColumnOrdinal] = f
		}
	}

	bestLen := 0
	var best catalog.TableIndex
	var bestEq []Filter
	found := false

	for _, candidate := range table.Indexes {
		prefixLen := 0
		var matched []Filter
		for _, colID := range candidate.Columns {
			ordinal := ordinalOf(table, colID)
			f, hasEq := eqByOrdinal[ordinal]
			if !hasEq {
				break
			}
			matched = append(matched, f)
			prefixLen++
		}
		if prefixLen == 0 {
			continue
		}
		if prefixLen > bestLen || (prefixLen == bestLen && found && candidate.ID < best.ID) {
			bestLen = prefixLen
			best = candidate
			bestEq = matched
			found = true
		}
	}

	return best, bestEq, found
}

func ordinalOf(table *catalog.Table, colID catalog.ColumnID) int {
	for i, c := range table.Columns {
		if c.ID == colID {
			return i
		}
	}
	return -1
}

package catalog

import "github.com/arenasql/arenasql/pkg/cell"

// TableID is a process-unique 16-bit monotonic identifier (spec.md §3.1),
// allocated by atomic increment on LastTableIDKey.
type TableID uint16

// TableIndexID is a process-unique 32-bit monotonic identifier, allocated
// analogously from LastTableIndexIDKey.
type TableIndexID uint32

// ColumnID is a column's ordinal position at table-create time.
type ColumnID uint8

// Column describes one column of a Table.
type Column struct {
	ID       ColumnID
	Name     string
	Type     cell.DataType
	Nullable bool
	// Default is an optional pre-serialized cell used when an INSERT
	// omits this column.
	Default *cell.Cell
}

// ConstraintKind tags the variant of a Constraint (spec.md §3.2: "use sum
// types" guidance — PrimaryKey and Unique are both backed by indexes and
// both set AllowDuplicates=false on their TableIndex).
type ConstraintKind uint8

const (
	PrimaryKey ConstraintKind = iota
	Unique
)

// Constraint is a tagged PrimaryKey(projection) | Unique(projection).
type Constraint struct {
	Kind       ConstraintKind
	Projection []ColumnID
}

// TableIndex is an ordered column projection forming a composite key.
type TableIndex struct {
	ID              TableIndexID
	Name            string
	Columns         []ColumnID
	AllowDuplicates bool
}

// Table is the full schema of one relation.
type Table struct {
	ID          TableID
	Name        string
	Columns     []Column
	Constraints []Constraint
	Indexes     []TableIndex
}

// NewTable builds a Table from its id, name, columns, and constraints,
// deriving one TableIndex per constraint (indexIDs supplies one allocated
// TableIndexID per entry in constraints, in order) and normalizing
// Nullable on every column a PrimaryKey constraint projects onto to
// false. spec.md §9 flags the source as inconsistent here ("does not
// always mark a PK as non-nullable"); this constructor is the one place
// that invariant is enforced, so every caller that builds a Table through
// it — rather than a bare struct literal — gets it for free.
func NewTable(id TableID, name string, columns []Column, constraints []Constraint, indexIDs []TableIndexID) *Table {
	cols := append([]Column(nil), columns...)
	indexes := make([]TableIndex, 0, len(constraints))

	for i, c := range constraints {
		if c.Kind == PrimaryKey {
			for _, colID := range c.Projection {
				for j := range cols {
					if cols[j].ID == colID {
						cols[j].Nullable = false
					}
				}
			}
		}
		indexName := name + "_pkey"
		if c.Kind == Unique {
			indexName = name + "_uniq"
		}
		var indexID TableIndexID
		if i < len(indexIDs) {
			indexID = indexIDs[i]
		}
		indexes = append(indexes, TableIndex{
			ID:              indexID,
			Name:            indexName,
			Columns:         c.Projection,
			AllowDuplicates: false,
		})
	}

	return &Table{
		ID:          id,
		Name:        name,
		Columns:     cols,
		Constraints: append([]Constraint(nil), constraints...),
		Indexes:     indexes,
	}
}

// ColumnByID returns the column with the given ID, or false if absent.
func (t *Table) ColumnByID(id ColumnID) (Column, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the column with the given name, or false if absent.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnOrdinal returns the positional index of column name within
// t.Columns, or -1 if it does not exist.
func (t *Table) ColumnOrdinal(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IndexByName returns the index with the given name, or false if absent.
func (t *Table) IndexByName(name string) (TableIndex, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return TableIndex{}, false
}

// Clone returns a deep-enough copy of t for use as the basis of an
// in-transaction schema mutation (CREATE INDEX, ALTER TABLE): slices are
// copied so appending to the clone never mutates the committed Table.
func (t *Table) Clone() *Table {
	clone := *t
	clone.Columns = append([]Column(nil), t.Columns...)
	clone.Constraints = append([]Constraint(nil), t.Constraints...)
	clone.Indexes = append([]TableIndex(nil), t.Indexes...)
	return &clone
}

// ColumnSpecs adapts t's columns to cell.ColumnSpec, the shape
// pkg/cell.RowConverter consumes (kept separate to avoid an import cycle
// between pkg/catalog and pkg/cell).
func (t *Table) ColumnSpecs() []cell.ColumnSpec {
	specs := make([]cell.ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		specs[i] = cell.ColumnSpec{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
	}
	return specs
}

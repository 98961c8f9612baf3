// Package catalog implements ArenaSQL's table/index catalog: the typed
// Table/Column/Constraint/TableIndex model, the bit-exact key layout over
// the kv.Store (spec.md §6.3), and the SchemaFactory/StorageFactory cache
// that loads schemas lazily per (catalog, schema) and serves uncommitted
// table definitions to the transaction that owns them.
package catalog

import (
	"encoding/binary"
	"fmt"
)

// Key layout helpers, bit-exact per spec.md §6.3. All multi-byte integers
// are big-endian; ⧺ is byte concatenation.

func LastTableIDKey() []byte { return []byte("m_last_table_id") }

func LastTableIndexIDKey() []byte { return []byte("m_last_table_index_id") }

func LastRowIDOfTableKey(tableID uint16) []byte {
	return []byte(fmt.Sprintf("m_t%d_last_rowid", tableID))
}

func TableSchemasPrefix(catalog, schema string) []byte {
	return []byte(fmt.Sprintf("m_schema_c%s_s%s_t", catalog, schema))
}

func TableSchemaKey(catalog, schema string, tableID uint16) []byte {
	return []byte(fmt.Sprintf("m_schema_c%s_s%s_t%d", catalog, schema, tableID))
}

func IndexRowsPrefix(indexID uint32) []byte {
	out := make([]byte, 0, 6)
	out = append(out, 'i')
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], indexID)
	out = append(out, b[:]...)
	return append(out, '_')
}

func IndexRowKey(indexID uint32, projection []byte) []byte {
	prefix := IndexRowsPrefix(indexID)
	return append(prefix, projection...)
}

func TableRowsPrefix(tableID uint16) []byte {
	out := make([]byte, 0, 4)
	out = append(out, 't')
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], tableID)
	out = append(out, b[:]...)
	return append(out, '_')
}

func TableRowKey(tableID uint16, rowIDBytes []byte) []byte {
	prefix := TableRowsPrefix(tableID)
	return append(prefix, rowIDBytes...)
}

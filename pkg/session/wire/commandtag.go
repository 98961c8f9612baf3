package wire

import (
	"strconv"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
)

// StatementKind tags the category of statement a command tag is derived
// from (spec.md §6.2).
type StatementKind string

const (
	StartTransaction StatementKind = "start_transaction"
	Commit           StatementKind = "commit"
	Rollback         StatementKind = "rollback"
	Query            StatementKind = "query"
	Insert           StatementKind = "insert"
	CreateDatabase   StatementKind = "create_database"
	CreateTable      StatementKind = "create_table"
	Delete           StatementKind = "delete"
	Update           StatementKind = "update"
	AlterIndex       StatementKind = "alter_index"
	Set              StatementKind = "set"
)

var commandTags = map[StatementKind]string{
	StartTransaction: "BEGIN",
	Commit:           "COMMIT",
	Rollback:         "ROLLBACK",
	Query:            "SELECT",
	Insert:           "INSERT",
	CreateDatabase:   "CREATE",
	CreateTable:      "CREATE",
	Delete:           "DELETE",
	Update:           "UPDATE",
	AlterIndex:       "ALTER",
	Set:              "SET",
}

// CommandTag returns the CommandComplete tag for kind. Statement kinds
// outside this table fail with UnsupportedOperation (spec.md §6.2: "Other
// statements fail with UnsupportedOperation").
func CommandTag(kind StatementKind) (string, error) {
	tag, ok := commandTags[kind]
	if !ok {
		return "", arenaerrors.UnsupportedOperation(string(kind))
	}
	return tag, nil
}

// FormatCommandComplete appends the affected row count to tag the way
// PostgreSQL clients expect (e.g. "INSERT 0 3", "SELECT 12"); INSERT
// carries a leading OID placeholder of 0 since ArenaSQL has no OID system,
// every other tag is "<TAG> <rows>".
func FormatCommandComplete(tag string, rows uint64) string {
	if tag == "INSERT" {
		return "INSERT 0 " + strconv.FormatUint(rows, 10)
	}
	return tag + " " + strconv.FormatUint(rows, 10)
}

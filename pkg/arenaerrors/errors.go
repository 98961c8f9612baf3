// Package arenaerrors defines the ArenaSQL error taxonomy: a tagged Kind
// enum instead of per-error-type structs (spec.md §9's "tagged variants
// where possible" guidance), a fixed severity/SQLSTATE mapping per
// spec.md §7, and constructor functions so call sites read like
// arenaerrors.RelationDoesntExist(name) rather than ad hoc fmt.Errorf.
package arenaerrors

import "fmt"

// Severity is the PostgreSQL-style error severity surfaced to the wire layer.
type Severity string

const (
	Fatal Severity = "FATAL"
	Err   Severity = "ERROR"
)

// Kind identifies the category of an ArenaSQL error.
type Kind string

const (
	KindUserDoesntExist             Kind = "user_doesnt_exist"
	KindInvalidPassword              Kind = "invalid_password"
	KindInvalidConnection            Kind = "invalid_connection"
	KindSessionAlreadyExists         Kind = "session_already_exists"
	KindCatalogNotFound              Kind = "catalog_not_found"
	KindRelationDoesntExist          Kind = "relation_doesnt_exist"
	KindColumnDoesntExist            Kind = "column_doesnt_exist"
	KindSchemaDoesntExist            Kind = "schema_doesnt_exist"
	KindRelationAlreadyExists        Kind = "relation_already_exists"
	KindUniqueConstraintViolated     Kind = "unique_constraint_violated"
	KindNullConstraintViolation      Kind = "null_constraint_violation"
	KindUnsupportedDataType          Kind = "unsupported_data_type"
	KindUnsupportedQuery             Kind = "unsupported_query"
	KindUnsupportedOperation         Kind = "unsupported_operation"
	KindMultipleCommandsIntoPrepared Kind = "multiple_commands_into_prepared_stmt"
	KindInvalidTransactionState      Kind = "invalid_transaction_state"
	KindIOError                      Kind = "io_error"
	KindArenaSQL                     Kind = "arenasql_error"
)

// sqlstate mirrors spec.md §7's fixed severity/SQLSTATE table.
var sqlstate = map[Kind]struct {
	severity Severity
	code     string
}{
	KindUserDoesntExist:             {Fatal, "28000"},
	KindInvalidPassword:              {Fatal, "28P01"},
	KindInvalidConnection:            {Fatal, "08006"},
	KindSessionAlreadyExists:         {Fatal, "08006"},
	KindCatalogNotFound:              {Fatal, "3D000"},
	KindRelationDoesntExist:          {Err, "42P01"},
	KindColumnDoesntExist:            {Err, "42703"},
	KindSchemaDoesntExist:            {Err, "3F000"},
	KindRelationAlreadyExists:        {Err, "42P07"},
	KindUniqueConstraintViolated:     {Err, "23505"},
	KindNullConstraintViolation:      {Err, "23502"},
	KindUnsupportedDataType:          {Err, "0A000"},
	KindUnsupportedQuery:             {Err, "0A000"},
	KindUnsupportedOperation:         {Err, "0A000"},
	KindMultipleCommandsIntoPrepared: {Err, "42601"},
	KindInvalidTransactionState:      {Fatal, "25000"},
	KindIOError:                      {Err, "58030"},
	KindArenaSQL:                     {Err, "XX000"},
}

// Error is the single error type every ArenaSQL error kind is carried in.
type Error struct {
	Kind     Kind
	Severity Severity
	Code     string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, arenaerrors.New(arenaerrors.KindRelationAlreadyExists, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	meta := sqlstate[kind]
	if meta.code == "" {
		meta = sqlstate[KindArenaSQL]
	}
	return &Error{
		Kind:     kind,
		Severity: meta.severity,
		Code:     meta.code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap builds an *Error of the given kind that carries cause as its inner error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.Cause = cause
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

func RelationAlreadyExists(name string) *Error {
	return New(KindRelationAlreadyExists, "relation %q already exists", name)
}

func RelationDoesntExist(name string) *Error {
	return New(KindRelationDoesntExist, "relation %q does not exist", name)
}

func ColumnDoesntExist(table, column string) *Error {
	return New(KindColumnDoesntExist, "column %q does not exist on relation %q", column, table)
}

func SchemaDoesntExist(name string) *Error {
	return New(KindSchemaDoesntExist, "schema %q does not exist", name)
}

func CatalogNotFound(name string) *Error {
	return New(KindCatalogNotFound, "database %q does not exist", name)
}

func UserDoesntExist(name string) *Error {
	return New(KindUserDoesntExist, "role %q does not exist", name)
}

func InvalidPassword(user string) *Error {
	return New(KindInvalidPassword, "password authentication failed for user %q", user)
}

// UniqueConstraintViolated carries the constraint name, the projected
// column names, and the offending serialized values, per spec.md §7.
func UniqueConstraintViolated(constraint string, columns []string, data []string) *Error {
	e := New(KindUniqueConstraintViolated,
		"duplicate key value violates unique constraint %q (columns=%v, values=%v)",
		constraint, columns, data)
	return e
}

func NullConstraintViolation(table, column string) *Error {
	return New(KindNullConstraintViolation,
		"null value in column %q of relation %q violates not-null constraint", column, table)
}

func UnsupportedDataType(name string) *Error {
	return New(KindUnsupportedDataType, "unsupported data type %q", name)
}

func UnsupportedQuery(detail string) *Error {
	return New(KindUnsupportedQuery, "unsupported query: %s", detail)
}

func UnsupportedOperation(detail string) *Error {
	return New(KindUnsupportedOperation, "unsupported operation: %s", detail)
}

// InvalidTransactionState reports an illegal transaction-state transition,
// e.g. committing a transaction that is already Closed.
func InvalidTransactionState(from, to string) *Error {
	return New(KindInvalidTransactionState, "invalid transaction state transition: %s -> %s", from, to)
}

func IOError(cause error) *Error {
	return Wrap(KindIOError, cause, "storage I/O error")
}

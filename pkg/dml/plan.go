package dml

import (
	"strings"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/txn"
)

// CustomStatement is a statement pkg/dml recognizes and executes itself
// before the query planner ever sees it (spec.md §4.11): SET/SET TIMEZONE
// (session-local no-ops at the storage layer) and any administrative
// procedure registered through RegisterProc. CREATE INDEX is not
// dispatched through this registry; it runs through CreateIndexPlan.
type CustomStatement struct {
	Name string
	Args []string
}

// ProcFn is an administrative procedure registered with a
// CustomPlanRegistry.
type ProcFn func(transaction *txn.Transaction, args []string) error

// CustomPlanRegistry recognizes and executes CustomStatements, falling
// through to the normal query planner (handled == false) for anything it
// does not own. Kept open for extensions such as scalar UDFs without
// implementing any of them here.
type CustomPlanRegistry struct {
	procs map[string]ProcFn
}

func NewCustomPlanRegistry() *CustomPlanRegistry {
	r := &CustomPlanRegistry{procs: make(map[string]ProcFn)}
	r.RegisterProc("set", noopSet)
	r.RegisterProc("set_timezone", noopSet)
	return r
}

// RegisterProc adds an administrative procedure callable by name (case
// insensitive) through Dispatch.
func (r *CustomPlanRegistry) RegisterProc(name string, fn ProcFn) {
	r.procs[strings.ToLower(name)] = fn
}

// Dispatch executes stmt if the registry recognizes its name, returning
// handled=false when the statement should fall through to the planner.
func (r *CustomPlanRegistry) Dispatch(transaction *txn.Transaction, stmt CustomStatement) (handled bool, err error) {
	fn, ok := r.procs[strings.ToLower(stmt.Name)]
	if !ok {
		return false, nil
	}
	return true, fn(transaction, stmt.Args)
}

// noopSet implements SET/SET TIMEZONE: ArenaSQL has no session GUCs to
// mutate, so these are accepted and ignored rather than rejected, matching
// clients (psql, most drivers) that issue them unconditionally at connect
// time.
func noopSet(*txn.Transaction, []string) error { return nil }

// UnsupportedCustomStatement reports an administrative statement name the
// registry does not recognize.
func UnsupportedCustomStatement(name string) error {
	return arenaerrors.UnsupportedQuery("unrecognized administrative statement " + name)
}

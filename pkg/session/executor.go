package session

import (
	"context"
	"strings"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/dml"
	"github.com/arenasql/arenasql/pkg/log"
	"github.com/arenasql/arenasql/pkg/session/wire"
	"github.com/arenasql/arenasql/pkg/txn"
)

// QueryEngine is the external columnar query engine's entry point
// (spec.md §1, §2): given a statement string and the transaction it
// should run against, it plans and executes the statement and returns
// the wire-ready result. ArenaSQL core has no implementation of this
// interface — SELECT/INSERT/DELETE/UPDATE planning lives outside this
// module, which only plugs catalog/table/sink providers into it
// (pkg/qe). A cluster that has not wired a real QE still serves
// BEGIN/COMMIT/ROLLBACK and the custom statements dml.CustomPlanRegistry
// owns; anything else fails UnsupportedQuery.
type QueryEngine interface {
	Execute(ctx context.Context, transaction *txn.Transaction, sql string) (wire.QueryResult, error)
}

// Executor implements wire.QueryExecutor: it is the dispatcher
// RunSimpleQueryLoop drives for one AuthenticatedSession. It handles
// BEGIN/COMMIT/ROLLBACK itself, runs SET/SET TIMEZONE through the
// CustomPlanRegistry (CREATE INDEX is not recognized here; see
// asCustomStatement) and hands everything else to the wired QueryEngine,
// auto-committing a fresh
// transaction around any statement that arrives without one already open
// (spec.md §4.5's autocommit rule).
type Executor struct {
	Ctx      *Context
	Registry *dml.CustomPlanRegistry
	QE       QueryEngine
}

// NewExecutor builds an Executor bound to one session's Context, with a
// default CustomPlanRegistry if registry is nil.
func NewExecutor(ctx *Context, registry *dml.CustomPlanRegistry, qe QueryEngine) *Executor {
	if registry == nil {
		registry = dml.NewCustomPlanRegistry()
	}
	return &Executor{Ctx: ctx, Registry: registry, QE: qe}
}

var _ wire.QueryExecutor = (*Executor)(nil)

// Execute implements wire.QueryExecutor.
func (e *Executor) Execute(ctx context.Context, sql string) (wire.QueryResult, error) {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	switch {
	case upper == "" || upper == ";":
		return wire.QueryResult{Tag: wire.Query}, nil

	case strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "START TRANSACTION"):
		if _, err := e.Ctx.BeginTransaction(ctx, true); err != nil {
			return wire.QueryResult{}, err
		}
		return wire.QueryResult{Tag: wire.StartTransaction}, nil

	case strings.HasPrefix(upper, "COMMIT"):
		t := e.Ctx.CurrentTransaction()
		if t == nil {
			return wire.QueryResult{}, arenaerrors.InvalidTransactionState("none", "commit")
		}
		err := t.Commit()
		e.Ctx.EndTransaction()
		if err != nil {
			return wire.QueryResult{}, err
		}
		return wire.QueryResult{Tag: wire.Commit}, nil

	case strings.HasPrefix(upper, "ROLLBACK"):
		t := e.Ctx.CurrentTransaction()
		if t == nil {
			return wire.QueryResult{}, arenaerrors.InvalidTransactionState("none", "rollback")
		}
		err := t.Rollback()
		e.Ctx.EndTransaction()
		if err != nil {
			return wire.QueryResult{}, err
		}
		return wire.QueryResult{Tag: wire.Rollback}, nil
	}

	if custom, ok := asCustomStatement(trimmed); ok {
		return e.runCustom(ctx, custom)
	}

	return e.runOnQE(ctx, trimmed)
}

// runCustom executes stmt against e.Registry inside an implicit
// transaction when the session has none open (spec.md §4.5 autocommit),
// committing on success and rolling back on failure.
func (e *Executor) runCustom(ctx context.Context, stmt dml.CustomStatement) (wire.QueryResult, error) {
	t, implicit, err := e.currentOrImplicitTransaction(ctx)
	if err != nil {
		return wire.QueryResult{}, err
	}

	handled, execErr := e.Registry.Dispatch(t, stmt)
	if !handled {
		if implicit {
			_ = t.Rollback()
			e.Ctx.EndTransaction()
		}
		return e.runOnQE(ctx, stmt.Name)
	}

	if execErr != nil {
		if implicit {
			_ = t.Rollback()
			e.Ctx.EndTransaction()
		}
		return wire.QueryResult{}, execErr
	}

	if implicit {
		if err := t.Commit(); err != nil {
			e.Ctx.EndTransaction()
			return wire.QueryResult{}, err
		}
		e.Ctx.EndTransaction()
	}

	log.WithComponent("session").Debug().
		Str("session", e.Ctx.ID).Str("proc", stmt.Name).Msg("custom statement executed")
	return wire.QueryResult{Tag: wire.Set}, nil
}

// runOnQE hands sql to the wired external query engine, opening an
// implicit transaction first when none is active. With no QueryEngine
// wired (the common case for this module, which only ships the core),
// every statement outside BEGIN/COMMIT/ROLLBACK/custom-procs fails
// UnsupportedQuery rather than silently doing nothing.
func (e *Executor) runOnQE(ctx context.Context, sql string) (wire.QueryResult, error) {
	if e.QE == nil {
		return wire.QueryResult{}, arenaerrors.UnsupportedQuery(sql)
	}

	t, implicit, err := e.currentOrImplicitTransaction(ctx)
	if err != nil {
		return wire.QueryResult{}, err
	}

	result, execErr := e.QE.Execute(ctx, t, sql)
	if execErr != nil {
		if implicit {
			_ = t.Rollback()
			e.Ctx.EndTransaction()
		}
		return wire.QueryResult{}, execErr
	}

	if implicit {
		if err := t.Commit(); err != nil {
			e.Ctx.EndTransaction()
			return wire.QueryResult{}, err
		}
		e.Ctx.EndTransaction()
	}
	return result, nil
}

func (e *Executor) currentOrImplicitTransaction(ctx context.Context) (t *txn.Transaction, implicit bool, err error) {
	if cur := e.Ctx.CurrentTransaction(); cur != nil {
		return cur, false, nil
	}
	newTxn, err := e.Ctx.BeginTransaction(ctx, true)
	if err != nil {
		return nil, false, err
	}
	return newTxn, true, nil
}

// asCustomStatement recognizes the statement shapes dml.CustomPlanRegistry
// owns by default (SET/SET TIMEZONE) by their leading keyword, since no
// SQL parser lives in this module (spec.md §1: parsing is QE's job).
// CREATE INDEX is also a custom plan (spec.md §4.10), but constructing a
// dml.CreateIndexPlan needs a parsed table/column/modifier list a text
// prefix match cannot safely produce; a wired QueryEngine is expected to
// recognize CREATE INDEX itself and invoke dml.CreateIndexPlan directly
// rather than round-tripping through this registry. Anything this
// function doesn't recognize falls through to the QueryEngine.
func asCustomStatement(sql string) (dml.CustomStatement, bool) {
	upper := strings.ToUpper(sql)
	fields := strings.Fields(sql)

	switch {
	case strings.HasPrefix(upper, "SET TIMEZONE"):
		return dml.CustomStatement{Name: "set_timezone", Args: fields[2:]}, true
	case strings.HasPrefix(upper, "SET "):
		return dml.CustomStatement{Name: "set", Args: fields[1:]}, true
	}
	return dml.CustomStatement{}, false
}

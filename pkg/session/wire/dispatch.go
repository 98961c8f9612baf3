package wire

import (
	"context"
	"io"
	"strconv"

	"github.com/jackc/pgproto3/v2"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/cell"
)

// Column describes one projected result column for RowDescription.
type Column struct {
	Name string
	Type cell.DataType
}

// QueryResult is what a QueryExecutor hands back for a single statement:
// either a row stream (Columns non-nil) or a bare command tag with an
// affected-row count (spec.md §6.2).
type QueryResult struct {
	Tag     StatementKind
	Columns []Column
	Rows    [][]cell.Cell
	Count   uint64
}

// QueryExecutor runs one simple-query string to completion.
// pkg/session.Executor is the implementation ArenaSQL wires in; wire only
// depends on this contract to stay decoupled from planning/execution.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (QueryResult, error)
}

// RunSimpleQueryLoop serves pgproto3 simple-query messages over rw until
// the client sends Terminate or the connection errors, dispatching each
// Query message to exec and responding with RowDescription/DataRow*
// /CommandComplete/ReadyForQuery. Extended-query messages (Parse/Bind
// /Describe/Execute) are rejected with UnsupportedOperation, since
// ArenaSQL's query engine is only reachable through whole SQL strings
// (spec.md §6.2: "the extended query protocol is out of scope").
func RunSimpleQueryLoop(ctx context.Context, rw io.ReadWriter, exec QueryExecutor) error {
	backend := pgproto3.NewBackend(pgproto3.NewChunkReader(rw), rw)

	for {
		msg, err := backend.Receive()
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case *pgproto3.Terminate:
			return nil

		case *pgproto3.Query:
			if err := handleQuery(ctx, backend, exec, m.String); err != nil {
				return err
			}

		case *pgproto3.Parse, *pgproto3.Bind, *pgproto3.Describe, *pgproto3.Execute, *pgproto3.Sync:
			unsupported := arenaerrors.UnsupportedOperation("extended query protocol")
			if sendErr := backend.Send(toErrorResponse(unsupported)); sendErr != nil {
				return sendErr
			}
			if sendErr := sendReadyForQuery(backend); sendErr != nil {
				return sendErr
			}

		default:
			unsupported := arenaerrors.UnsupportedOperation("unrecognized frontend message")
			if sendErr := backend.Send(toErrorResponse(unsupported)); sendErr != nil {
				return sendErr
			}
			if sendErr := sendReadyForQuery(backend); sendErr != nil {
				return sendErr
			}
		}
	}
}

func handleQuery(ctx context.Context, backend *pgproto3.Backend, exec QueryExecutor, sql string) error {
	result, err := exec.Execute(ctx, sql)
	if err != nil {
		if sendErr := backend.Send(toErrorResponse(err)); sendErr != nil {
			return sendErr
		}
		return sendReadyForQuery(backend)
	}

	if result.Columns != nil {
		if err := sendRowDescription(backend, result.Columns); err != nil {
			return err
		}
		for _, row := range result.Rows {
			if err := sendDataRow(backend, row); err != nil {
				return err
			}
		}
		result.Count = uint64(len(result.Rows))
	}

	tag, err := CommandTag(result.Tag)
	if err != nil {
		if sendErr := backend.Send(toErrorResponse(err)); sendErr != nil {
			return sendErr
		}
		return sendReadyForQuery(backend)
	}

	complete := &pgproto3.CommandComplete{CommandTag: []byte(FormatCommandComplete(tag, result.Count))}
	if err := backend.Send(complete); err != nil {
		return err
	}
	return sendReadyForQuery(backend)
}

func sendRowDescription(backend *pgproto3.Backend, columns []Column) error {
	fields := make([]pgproto3.FieldDescription, 0, len(columns))
	for _, c := range columns {
		oid, err := OIDFor(c.Type)
		if err != nil {
			return backend.Send(toErrorResponse(err))
		}
		fields = append(fields, pgproto3.FieldDescription{
			Name:                 []byte(c.Name),
			TableOID:             0,
			TableAttributeNumber: 0,
			DataTypeOID:          oid,
			DataTypeSize:         -1,
			TypeModifier:         -1,
			Format:               0,
		})
	}
	return backend.Send(&pgproto3.RowDescription{Fields: fields})
}

func sendDataRow(backend *pgproto3.Backend, row []cell.Cell) error {
	values := make([][]byte, len(row))
	for i, c := range row {
		text, err := cellText(c)
		if err != nil {
			return backend.Send(toErrorResponse(err))
		}
		values[i] = text
	}
	return backend.Send(&pgproto3.DataRow{Values: values})
}

// cellText renders c in PostgreSQL text wire format. A nil result means
// SQL NULL.
func cellText(c cell.Cell) ([]byte, error) {
	if c.Null {
		return nil, nil
	}
	switch c.Type.Kind {
	case cell.Bool:
		v, err := c.AsBool()
		if err != nil {
			return nil, err
		}
		if v {
			return []byte("t"), nil
		}
		return []byte("f"), nil
	case cell.I32:
		v, err := c.AsI32()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case cell.I64:
		v, err := c.AsI64()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(v, 10)), nil
	case cell.F32:
		v, err := c.AsF32()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatFloat(float64(v), 'g', -1, 32)), nil
	case cell.F64:
		v, err := c.AsF64()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case cell.Text, cell.Varchar:
		v, err := c.AsText()
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	default:
		b, err := c.AsBytes()
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func sendReadyForQuery(backend *pgproto3.Backend) error {
	if err := backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'}); err != nil {
		return err
	}
	return backend.Flush()
}

// Package wire implements the PostgreSQL frontend/backend protocol
// mechanics ArenaSQL needs on top of github.com/jackc/pgproto3/v2 (spec.md
// §6.1): the startup/auth handshake, simple-query dispatch, and the
// OID/command-tag mapping tables. Message framing and parsing themselves
// are pgproto3's job; this package only implements the handler contracts
// that consume already-parsed messages.
package wire

import (
	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/cell"
)

// PostgreSQL OIDs for the result types ArenaSQL can return (spec.md §6.1,
// carried from original_source's pgwire/datatype.rs per SPEC_FULL.md §C).
const (
	OIDBool   = 16
	OIDInt8   = 20
	OIDInt4   = 23
	OIDText   = 25
	OIDFloat4 = 700
	OIDFloat8 = 701
	OIDJSONB  = 3802
)

// OIDFor maps a cell.DataType to its wire OID. List(_) is always reported
// as JSONB; the result encoder (cellText) sends a List cell's raw bytes
// unchanged, with no conversion to JSON text. Every
// other unrecognized kind (Opaque included, since its wire shape is
// per-logical-name and not representable here) fails with
// UnsupportedDataType.
func OIDFor(t cell.DataType) (uint32, error) {
	switch t.Kind {
	case cell.Bool:
		return OIDBool, nil
	case cell.I32:
		return OIDInt4, nil
	case cell.I64:
		return OIDInt8, nil
	case cell.F32:
		return OIDFloat4, nil
	case cell.F64:
		return OIDFloat8, nil
	case cell.Text, cell.Varchar:
		return OIDText, nil
	case cell.List:
		return OIDJSONB, nil
	default:
		return 0, arenaerrors.UnsupportedDataType(t.String())
	}
}

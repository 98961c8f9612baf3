package wire

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgproto3/v2"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
)

// AuthResult is what a successful Authenticate call hands back to the
// handshake: the session identifier the rest of the connection's
// lifetime is tracked under.
type AuthResult struct {
	SessionID string
}

// Authenticator resolves a connection's startup parameters into an
// AuthResult or one of spec.md §6.1's FATAL failure kinds
// (UserDoesntExist, InvalidPassword, CatalogNotFound,
// SessionAlreadyExists). ArenaSQL's pkg/session.Cluster implements this.
type Authenticator interface {
	Authenticate(ctx context.Context, user, password, database string) (AuthResult, error)
}

// defaultUser and defaultDatabase are substituted when the StartupMessage
// omits them (spec.md §6.1).
const (
	defaultUser     = "root"
	defaultDatabase = "postgres"
)

// PerformHandshake reads the client's StartupMessage, requests a cleartext
// password, authenticates against auth, and completes the handshake with
// AuthenticationOk/ReadyForQuery on success. On failure it writes the
// FATAL ErrorResponse spec.md §6.1 specifies and returns the error — the
// caller must close the connection afterward.
func PerformHandshake(ctx context.Context, rw io.ReadWriter, auth Authenticator) (*AuthResult, error) {
	backend := pgproto3.NewBackend(pgproto3.NewChunkReader(rw), rw)

	startup, err := backend.ReceiveStartupMessage()
	if err != nil {
		return nil, fmt.Errorf("wire: reading startup message: %w", err)
	}

	msg, ok := startup.(*pgproto3.StartupMessage)
	if !ok {
		cancelErr := arenaerrors.New(arenaerrors.KindInvalidConnection, "unsupported startup message")
		writeFatal(backend, cancelErr)
		return nil, cancelErr
	}

	user := msg.Parameters["user"]
	if user == "" {
		user = defaultUser
	}
	database := msg.Parameters["database"]
	if database == "" {
		database = defaultDatabase
	}

	if err := backend.Send(&pgproto3.AuthenticationCleartextPassword{}); err != nil {
		return nil, fmt.Errorf("wire: requesting password: %w", err)
	}
	if err := backend.Flush(); err != nil {
		return nil, fmt.Errorf("wire: flushing password request: %w", err)
	}

	pwMsg, err := backend.Receive()
	if err != nil {
		return nil, fmt.Errorf("wire: reading password message: %w", err)
	}
	pwd, ok := pwMsg.(*pgproto3.PasswordMessage)
	if !ok {
		authErr := arenaerrors.New(arenaerrors.KindInvalidConnection, "expected password message")
		writeFatal(backend, authErr)
		return nil, authErr
	}

	result, err := auth.Authenticate(ctx, user, pwd.Password, database)
	if err != nil {
		writeFatal(backend, err)
		return nil, err
	}

	if err := backend.Send(&pgproto3.AuthenticationOk{}); err != nil {
		return nil, fmt.Errorf("wire: sending AuthenticationOk: %w", err)
	}
	if err := backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'}); err != nil {
		return nil, fmt.Errorf("wire: sending ReadyForQuery: %w", err)
	}
	if err := backend.Flush(); err != nil {
		return nil, fmt.Errorf("wire: flushing handshake completion: %w", err)
	}

	return &result, nil
}

// writeFatal sends err as a FATAL ErrorResponse, best-effort (the
// connection is being torn down regardless of whether this send
// succeeds).
func writeFatal(backend *pgproto3.Backend, err error) {
	resp := toErrorResponse(err)
	_ = backend.Send(resp)
	_ = backend.Flush()
}

// toErrorResponse translates an ArenaSQL error into a pgproto3
// ErrorResponse, using its tagged Severity/Code when available and
// falling back to a generic internal-error shape otherwise.
func toErrorResponse(err error) *pgproto3.ErrorResponse {
	if ae, ok := err.(*arenaerrors.Error); ok {
		return &pgproto3.ErrorResponse{
			Severity: string(ae.Severity),
			Code:     ae.Code,
			Message:  ae.Message,
		}
	}
	return &pgproto3.ErrorResponse{
		Severity: string(arenaerrors.Fatal),
		Code:     "XX000",
		Message:  err.Error(),
	}
}

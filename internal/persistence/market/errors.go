package marketpersist

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/breaker"
)

// ErrorKind classifies store failures.
type ErrorKind string

const (
	ConnectionExhausted           ErrorKind = "connection_exhausted"
	ConstraintViolationUnexpected ErrorKind = "constraint_violation_unexpected"
	TransactionFailed             ErrorKind = "transaction_failed"
)

// ErrNotReadOnly is returned by Query for statements that could mutate data.
var ErrNotReadOnly = errors.New("marketpersist: only SELECT/WITH statements are allowed")

// StoreError wraps a database failure with its classification.
type StoreError struct {
	Kind  ErrorKind
	Op    string
	Chunk int // zero-based chunk index for upserts, -1 otherwise
	Err   error
}

func (e *StoreError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("marketpersist: %s chunk %d: %s: %v", e.Op, e.Chunk, e.Kind, e.Err)
	}
	return fmt.Sprintf("marketpersist: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func newStoreError(op string, chunk int, err error) *StoreError {
	return &StoreError{Kind: classify(err), Op: op, Chunk: chunk, Err: err}
}

func classify(err error) ErrorKind {
	code := sqlState(err)
	switch {
	case code == "53300", code == "53400", strings.HasPrefix(code, "08"):
		return ConnectionExhausted
	case strings.HasPrefix(code, "23"):
		return ConstraintViolationUnexpected
	}

	var connectErr *pgconn.ConnectError
	switch {
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, breaker.ErrServiceUnavailable),
		errors.As(err, &connectErr):
		return ConnectionExhausted
	}
	return TransactionFailed
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

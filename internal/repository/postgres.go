package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	pgErrUniqueViolation  = "23505"
	pgErrNotNullViolation = "23502"
	pgErrCheckViolation   = "23514"
	pgErrClassDataError   = "22"
)

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// wrapPgErr attaches ErrDuplicateKey or ErrInvalidInput to driver errors
// that map onto them.
func wrapPgErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgErrUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
		case pgErr.Code == pgErrNotNullViolation,
			pgErr.Code == pgErrCheckViolation,
			strings.HasPrefix(pgErr.Code, pgErrClassDataError):
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

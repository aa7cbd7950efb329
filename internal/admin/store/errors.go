package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Persistence error sentinels. Service code matches these with errors.Is
// instead of inspecting driver-specific codes.
var (
	// ErrNotFound marks lookups and writes that matched no row.
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation marks writes rejected by a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation marks writes referencing a missing record.
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation marks writes rejected by a check constraint.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation marks writes leaving a NOT NULL column empty.
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError translates driver errors into the package sentinels,
// wrapping so the constraint detail survives for logging. Errors with no
// sentinel mapping pass through unchanged.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s", ErrNotNullViolation, pgErr.ColumnName)
		}
	}

	return err
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation reports whether err wraps ErrUniqueViolation.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation reports whether err wraps ErrForeignKeyViolation.
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cityops/conductor/internal/storage"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to storage.ErrNotFound for consistent handling upstream.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUniqueConstraintError checks if an error is a UNIQUE constraint
// violation. Get-or-create paths treat these as a benign duplicate race.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyConstraintError checks if an error is a FOREIGN KEY constraint
// violation.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint failed")
}

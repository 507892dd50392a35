package db

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, pgerrcode.UniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation,
// optionally restricted to the named constraint.
func IsForeignKeyViolation(err error, constraint string) bool {
	return hasCode(err, pgerrcode.ForeignKeyViolation, constraint)
}

func hasCode(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

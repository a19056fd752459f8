package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agrocomice/agroaccess/internal/shared"
)

// PostgreSQL error codes surfaced as domain errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// MapError translates driver errors into shared sentinels. Anything it does
// not recognise is returned unchanged. A foreign key violation here means a
// delete hit a row that is still referenced.
func MapError(err error) error {
	return mapError(err, shared.ErrReferenced)
}

// MapWriteError is MapError for inserts and updates, where a foreign key
// violation means the row points at something that does not exist.
func MapWriteError(err error) error {
	return mapError(err, shared.ErrValidation)
}

func mapError(err error, foreignKey error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return errors.Join(foreignKey, err)
		case codeUniqueViolation:
			return errors.Join(shared.ErrDuplicate, err)
		}
	}
	return err
}

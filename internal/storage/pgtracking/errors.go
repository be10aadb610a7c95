package pgtracking

import (
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error, index string) bool {
	code, constraint := pgCode(err)
	return code == codeUniqueViolation && constraint == index
}

func isForeignKeyViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeForeignKeyViolation
}

// persistErr tags a storage failure with ErrPersistenceFailure, keeping the
// driver message for logs.
func persistErr(err error, msg string) error {
	return errors.Wrapf(models.ErrPersistenceFailure, "%s: %v", msg, err)
}

package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString  = errors.New("pg.empty_connection_string")
	ErrParseConfig            = errors.New("pg.parse_config")
	ErrConnect                = errors.New("pg.connect")
	ErrHealthcheckFailed      = errors.New("pg.healthcheck_failed")
	ErrMigrate                = errors.New("pg.migrate")
	ErrMigrationsDirNotFound  = errors.New("pg.migrations_dir_not_found")
	ErrMigrationsPathRequired = errors.New("pg.migrations_path_required")
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// IsNotFoundError reports pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsTxClosedError reports use of a finished transaction.
func IsTxClosedError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrTxClosed)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolationError reports a referential integrity violation.
func IsForeignKeyViolationError(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsSerializationError reports a transaction that lost a serialization race
// and may be retried as a whole.
func IsSerializationError(err error) bool {
	return hasCode(err, codeSerializationFailure) || hasCode(err, codeDeadlockDetected)
}

// IsLockTimeoutError reports a lock that was not granted within lock_timeout.
func IsLockTimeoutError(err error) bool {
	return hasCode(err, codeLockNotAvailable)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

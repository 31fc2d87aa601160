package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/entityacl/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name  string
		check func(error) bool
		hit   error
		miss  error
	}{
		{"not found", pg.IsNotFoundError, fmt.Errorf("scan: %w", pgx.ErrNoRows), errors.New("other")},
		{"tx closed", pg.IsTxClosedError, pgx.ErrTxClosed, pgx.ErrNoRows},
		{"duplicate key", pg.IsDuplicateKeyError, wrap("23505"), wrap("23503")},
		{"foreign key", pg.IsForeignKeyViolationError, wrap("23503"), wrap("23505")},
		{"serialization", pg.IsSerializationError, wrap("40001"), wrap("55P03")},
		{"deadlock", pg.IsSerializationError, wrap("40P01"), errors.New("other")},
		{"lock timeout", pg.IsLockTimeoutError, wrap("55P03"), wrap("40001")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.hit))
			assert.False(t, tt.check(tt.miss))
			assert.False(t, tt.check(nil))
		})
	}
}

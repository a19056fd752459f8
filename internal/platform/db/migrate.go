package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// migrationLockKey serialises concurrent Migrate calls across processes.
const migrationLockKey int64 = 0x61677261

// Migrate applies the idempotent access-control schema in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}

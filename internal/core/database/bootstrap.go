package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped applies scripts/initdb.sql when contexta_meta is missing
// or does not record schemaVersion. The script is idempotent.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	current, err := schemaApplied(bootCtx, db)
	if err != nil {
		return err
	}
	if current {
		return nil
	}

	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	tx, err := db.BeginTx(bootCtx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(bootCtx, string(script)); err != nil {
		return fmt.Errorf("apply schema v%d: %w", schemaVersion, err)
	}
	return tx.Commit()
}

func schemaApplied(ctx context.Context, db *sql.DB) (bool, error) {
	var meta sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('contexta_meta')::text`).Scan(&meta); err != nil {
		return false, fmt.Errorf("schema lookup: %w", err)
	}
	if !meta.Valid {
		return false, nil
	}
	var applied bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM contexta_meta WHERE version = $1)`, schemaVersion).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("schema version lookup: %w", err)
	}
	return applied, nil
}

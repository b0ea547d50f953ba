package postgres

import (
	"context"
	"embed"
	"fmt"

	"gastos/internal/domain/expense"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// Schema selects which expense table layout Migrate creates.
type Schema string

const (
	// SchemaCurrent has the category_id column and the change trigger.
	SchemaCurrent Schema = "current"
	// SchemaLegacy is the older layout without category_id.
	SchemaLegacy Schema = "legacy"
)

// ParseSchema accepts "current" and "legacy".
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case SchemaCurrent, SchemaLegacy:
		return Schema(s), nil
	default:
		return "", fmt.Errorf("unknown schema %q (want %q or %q)", s, SchemaCurrent, SchemaLegacy)
	}
}

// Migrate creates the tables for schema and seeds the default categories.
// It is safe to run more than once.
func Migrate(ctx context.Context, db *DB, schema Schema) error {
	ddl, err := schemaFiles.ReadFile("schema/" + string(schema) + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read %s schema: %w", schema, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("failed to apply %s schema: %w", schema, err)
	}

	for _, name := range expense.DefaultCategories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			name,
		)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

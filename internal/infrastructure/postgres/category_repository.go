package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gastos/internal/domain/expense"
)

// CategoryRepository reads the category lookup table. The table name comes
// from the caller and is always quoted.
type CategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) CheckTable(ctx context.Context, table string) error {
	query := `SELECT id::text, name FROM ` + pq.QuoteIdentifier(table) + ` LIMIT 1`

	var id, name string
	err := r.db.QueryRowContext(ctx, query).Scan(&id, &name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read category table %s: %w", table, err)
	}
	return nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, table, name string, caseInsensitive bool) (*expense.Category, error) {
	where := `name = $1`
	if caseInsensitive {
		where = `lower(name) = lower($1)`
	}
	query := `
		SELECT id::text, name
		FROM ` + pq.QuoteIdentifier(table) + `
		WHERE ` + where + `
		ORDER BY name
		LIMIT 1
	`

	var c expense.Category
	err := r.db.QueryRowContext(ctx, query, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	return &c, nil
}

func (r *CategoryRepository) NamesByID(ctx context.Context, table string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := `
		SELECT id::text, name
		FROM ` + pq.QuoteIdentifier(table) + `
		WHERE id::text = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to look up categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return names, nil
}

// List returns every category in table, ordered by name.
func (r *CategoryRepository) List(ctx context.Context, table string) ([]expense.Category, error) {
	query := `SELECT id::text, name FROM ` + pq.QuoteIdentifier(table) + ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []expense.Category
	for rows.Next() {
		var c expense.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return out, nil
}

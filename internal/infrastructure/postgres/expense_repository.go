package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"gastos/internal/domain/expense"
)

const (
	expenseColumns       = `id::text, description, amount, category_id::text, created_at`
	legacyExpenseColumns = `id::text, description, amount, created_at`
)

type ExpenseRepository struct {
	db *DB
}

func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) List(ctx context.Context, userID string, opts expense.ListOptions) ([]expense.Row, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = expense.DefaultPageSize
	}

	columns := legacyExpenseColumns
	if opts.IncludeCategory {
		columns = expenseColumns
	}
	query := `
		SELECT ` + columns + `
		FROM expenses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var out []expense.Row
	for rows.Next() {
		row, err := scanExpense(rows, opts.IncludeCategory)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}

	return out, nil
}

func (r *ExpenseRepository) Insert(ctx context.Context, params expense.InsertParams) (*expense.Row, error) {
	var (
		query string
		args  []any
	)
	if params.IncludeCategory {
		query = `
			INSERT INTO expenses (user_id, description, amount, category_id)
			VALUES ($1, $2, $3, $4)
			RETURNING ` + expenseColumns
		args = []any{params.UserID, params.Description, params.Amount, params.CategoryID}
	} else {
		query = `
			INSERT INTO expenses (user_id, description, amount)
			VALUES ($1, $2, $3)
			RETURNING ` + legacyExpenseColumns
		args = []any{params.UserID, params.Description, params.Amount}
	}

	row, err := scanExpense(r.db.QueryRowContext(ctx, query, args...), params.IncludeCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}

	return &row, nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM expenses WHERE id::text = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner, withCategory bool) (expense.Row, error) {
	var (
		row        expense.Row
		amount     decimal.Decimal
		categoryID sql.NullString
		err        error
	)
	if withCategory {
		err = s.Scan(&row.ID, &row.Description, &amount, &categoryID, &row.CreatedAt)
	} else {
		err = s.Scan(&row.ID, &row.Description, &amount, &row.CreatedAt)
	}
	if err != nil {
		return expense.Row{}, err
	}

	row.Amount = amount
	if categoryID.Valid {
		row.CategoryID = &categoryID.String
	}
	return row, nil
}

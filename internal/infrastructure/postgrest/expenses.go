package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/domain/expense"
)

const (
	expensesTable        = "expenses"
	expenseSelect        = "id,description,amount,category_id,created_at"
	legacyExpenseSelect  = "id,description,amount,created_at"
	representationPrefer = "return=representation"
)

type expenseRecord struct {
	ID          recordID        `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  *recordID       `json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r expenseRecord) toRow() expense.Row {
	return expense.Row{
		ID:          string(r.ID),
		Description: r.Description,
		Amount:      r.Amount,
		CategoryID:  r.CategoryID.ptr(),
		CreatedAt:   r.CreatedAt,
	}
}

type expenseInsert struct {
	UserID      string          `json:"user_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type expenseInsertWithCategory struct {
	expenseInsert
	CategoryID *string `json:"category_id"`
}

// ExpenseRepository implements expense.Repository over the REST gateway.
type ExpenseRepository struct {
	client *Client
}

func NewExpenseRepository(client *Client) *ExpenseRepository {
	return &ExpenseRepository{client: client}
}

func (r *ExpenseRepository) List(ctx context.Context, userID string, opts expense.ListOptions) ([]expense.Row, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = expense.DefaultPageSize
	}
	sel := legacyExpenseSelect
	if opts.IncludeCategory {
		sel = expenseSelect
	}

	q := url.Values{}
	q.Set("select", sel)
	q.Set("user_id", eq(userID))
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var records []expenseRecord
	if err := r.client.do(ctx, http.MethodGet, expensesTable, q, nil, "", &records); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	rows := make([]expense.Row, len(records))
	for i, rec := range records {
		rows[i] = rec.toRow()
	}
	return rows, nil
}

func (r *ExpenseRepository) Insert(ctx context.Context, params expense.InsertParams) (*expense.Row, error) {
	base := expenseInsert{
		UserID:      params.UserID,
		Description: params.Description,
		Amount:      params.Amount,
	}

	q := url.Values{}
	var body any = base
	q.Set("select", legacyExpenseSelect)
	if params.IncludeCategory {
		body = expenseInsertWithCategory{expenseInsert: base, CategoryID: params.CategoryID}
		q.Set("select", expenseSelect)
	}

	var records []expenseRecord
	if err := r.client.do(ctx, http.MethodPost, expensesTable, q, body, representationPrefer, &records); err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("failed to insert expense: no row returned")
	}

	row := records[0].toRow()
	return &row, nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, userID, id string) error {
	q := url.Values{}
	q.Set("id", eq(id))
	q.Set("user_id", eq(userID))

	if err := r.client.do(ctx, http.MethodDelete, expensesTable, q, nil, "", nil); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

package expense

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Add records a new expense for the store's user.
//
// A blank description becomes PlaceholderDescription and an amount that is
// negative or not finite becomes zero. When the backend has no category
// column, or no category table at all, the row is written without a category
// and the user's label is kept locally, in the session map and in the
// persisted cache.
func (s *Store) Add(ctx context.Context, in AddInput) (Expense, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = PlaceholderDescription
	}
	amount := sanitizeAmount(in.Amount)
	label := strings.TrimSpace(in.Category)

	m := newMutation(MutationInsert, "")

	category, err := s.categories.Resolve(ctx, label)
	if err != nil {
		if !errors.Is(err, ErrCategoryTableMissing) {
			s.settle(m, err)
			return Expense{}, err
		}
		s.log.WithError(err).Warn("No category table, storing category locally")
	}

	params := InsertParams{
		UserID:          s.userID,
		Description:     description,
		Amount:          amount,
		IncludeCategory: true,
	}
	if category != nil {
		params.CategoryID = &category.ID
	}

	legacy := false
	row, err := s.repo.Insert(ctx, params)
	if err != nil && IsMissingColumn(err, CategoryColumn) {
		s.log.WithError(err).Debug("Expense table has no category column, storing category locally")
		legacy = true
		params.IncludeCategory = false
		params.CategoryID = nil
		row, err = s.repo.Insert(ctx, params)
	}
	if err == nil && row == nil {
		err = errors.New("backend returned no row")
	}
	if err != nil {
		s.settle(m, err)
		return Expense{}, fmt.Errorf("failed to add expense: %w", err)
	}

	e := Expense{
		ID:          row.ID,
		Description: row.Description,
		Amount:      row.Amount,
		CreatedAt:   row.CreatedAt,
	}
	switch {
	case category != nil && !legacy:
		e.CategoryID = category.ID
		e.CategoryName = category.Name
		if row.CategoryID != nil && *row.CategoryID != "" {
			e.CategoryID = *row.CategoryID
		}
	case label != "":
		e.CategoryName = label
		if err := s.cache.Set(ctx, e.ID, label); err != nil {
			s.log.WithError(err).WithField("expense_id", e.ID).Warn("Failed to persist category name")
		}
	}

	s.mu.Lock()
	if e.CategoryName != "" {
		s.transient[e.ID] = e.CategoryName
	}
	next := make([]Expense, 0, len(s.rows)+1)
	next = append(next, e)
	for _, existing := range s.rows {
		if existing.ID != e.ID {
			next = append(next, existing)
		}
	}
	sortExpenses(next)
	s.rows = next
	s.mu.Unlock()

	m.ExpenseID = e.ID
	s.settle(m, nil)
	s.notify()
	return e, nil
}

func sanitizeAmount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

package expense

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PlaceholderDescription replaces a blank description on insert.
	PlaceholderDescription = "Expense"

	// UncategorizedLabel is how an expense without a category is shown and grouped.
	UncategorizedLabel = "Uncategorized"

	// DefaultPageSize bounds the expense query.
	DefaultPageSize = 250

	// CategoryColumn is the normalized foreign key that older backends lack.
	CategoryColumn = "category_id"
)

// DefaultCategoryTables are checked in order to find the category lookup table.
var DefaultCategoryTables = []string{"categories", "category"}

// DefaultCategories are the names seeded into a fresh backend.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Utilities",
	"School",
	"Entertainment",
	"Shopping",
	"Health",
	"Others",
}

// Domain errors
var (
	ErrNotSignedIn          = errors.New("must be signed in")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryTableMissing = errors.New("no category table found")
	ErrInvalidTransition    = errors.New("invalid mutation transition")
)

// Expense is one row of the in-memory collection.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	// CategoryID is empty when the backend has no category column or none was chosen.
	CategoryID string `json:"categoryId,omitempty"`
	// CategoryName is empty for "Uncategorized".
	CategoryName string    `json:"categoryName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CategoryLabel returns the display label, falling back to UncategorizedLabel.
func (e Expense) CategoryLabel() string {
	if e.CategoryName == "" {
		return UncategorizedLabel
	}
	return e.CategoryName
}

// Category is read-only reference data owned by the backend.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Row is an expense as returned by the remote table, before category names are resolved.
type Row struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	CategoryID  *string
	CreatedAt   time.Time
}

// ListOptions controls the expense query shape.
type ListOptions struct {
	IncludeCategory bool
	Limit           int
}

// InsertParams contains parameters for inserting an expense row.
type InsertParams struct {
	UserID      string
	Description string
	Amount      decimal.Decimal
	CategoryID  *string
	// IncludeCategory is false when retrying against a backend without CategoryColumn.
	IncludeCategory bool
}

// AddInput is what a user submits when recording an expense.
type AddInput struct {
	Description string
	Amount      float64
	Category    string
}

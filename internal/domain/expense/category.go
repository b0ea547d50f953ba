package expense

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CategoryResolver turns user-entered labels into backend category ids.
//
// The category table name is discovered once by checking candidate names in
// order. The first table that answers is remembered for the resolver's
// lifetime; a later rename on the backend is not noticed until restart.
type CategoryResolver struct {
	repo       CategoryRepository
	candidates []string

	mu    sync.Mutex
	table string
}

// NewCategoryResolver creates a resolver checking candidates, or DefaultCategoryTables when none are given.
func NewCategoryResolver(repo CategoryRepository, candidates ...string) *CategoryResolver {
	if len(candidates) == 0 {
		candidates = DefaultCategoryTables
	}
	return &CategoryResolver{
		repo:       repo,
		candidates: append([]string(nil), candidates...),
	}
}

// Table returns the detected category table, checking on first use.
// A failed detection is not remembered, so the next call checks again.
func (r *CategoryResolver) Table(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.table != "" {
		return r.table, nil
	}

	var lastErr error
	for _, name := range r.candidates {
		if err := r.repo.CheckTable(ctx, name); err != nil {
			lastErr = err
			continue
		}
		r.table = name
		return name, nil
	}

	return "", fmt.Errorf("%w: tried %s (last error: %v); expected a table with columns (id, name)",
		ErrCategoryTableMissing, strings.Join(r.candidates, ", "), lastErr)
}

// Resolve finds the category for label. A blank label resolves to nil, nil.
// An exact name match wins over a case-insensitive one.
func (r *CategoryResolver) Resolve(ctx context.Context, label string) (*Category, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		return nil, nil
	}

	table, err := r.Table(ctx)
	if err != nil {
		return nil, err
	}

	category, err := r.repo.FindByName(ctx, table, name, false)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	if category != nil {
		return category, nil
	}

	category, err = r.repo.FindByName(ctx, table, name, true)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	if category != nil {
		return category, nil
	}

	return nil, fmt.Errorf("%w: %q is not in table %q; expected a row with columns (id, name) for it",
		ErrCategoryNotFound, name, table)
}

// Names resolves category ids to names in one batch.
func (r *CategoryResolver) Names(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	table, err := r.Table(ctx)
	if err != nil {
		return nil, err
	}

	names, err := r.repo.NamesByID(ctx, table, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category names: %w", err)
	}
	return names, nil
}

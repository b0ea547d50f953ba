package expense

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Refresh replaces the collection with the backend's current rows.
//
// If the backend has no category column the rows are fetched without it and
// names come from, in order: the name already shown for the id, the session
// map, then the persisted cache. A failed name lookup falls back the same
// way. Any other backend error is recorded as the last error and leaves the
// collection untouched.
func (s *Store) Refresh(ctx context.Context) error {
	outcome := "ok"
	rows, err := s.repo.List(ctx, s.userID, ListOptions{IncludeCategory: true, Limit: s.pageSize})
	withCategory := true
	if err != nil && IsMissingColumn(err, CategoryColumn) {
		s.log.WithError(err).Debug("Expense table has no category column, using local category names")
		outcome = "schema_fallback"
		withCategory = false
		rows, err = s.repo.List(ctx, s.userID, ListOptions{IncludeCategory: false, Limit: s.pageSize})
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		s.log.WithError(err).Warn("Expense refresh failed")
		s.notify()
		return fmt.Errorf("failed to refresh expenses: %w", err)
	}

	var resolved map[string]string
	if withCategory {
		resolved, err = s.categories.Names(ctx, categoryIDs(rows))
		if err != nil {
			s.log.WithError(err).Warn("Category lookup failed, using local category names")
			resolved = nil
		}
	}

	s.mu.Lock()
	shown := make(map[string]string, len(s.rows))
	for _, e := range s.rows {
		if e.CategoryName != "" {
			shown[e.ID] = e.CategoryName
		}
	}
	session := make(map[string]string, len(s.transient))
	for id, name := range s.transient {
		session[id] = name
	}
	s.mu.Unlock()

	next := make([]Expense, 0, len(rows))
	var unresolved []string
	for _, row := range rows {
		e := Expense{
			ID:          row.ID,
			Description: row.Description,
			Amount:      row.Amount,
			CreatedAt:   row.CreatedAt,
		}
		if row.CategoryID != nil {
			e.CategoryID = *row.CategoryID
			e.CategoryName = resolved[*row.CategoryID]
		}
		if e.CategoryName == "" {
			e.CategoryName = firstNonEmpty(shown[row.ID], session[row.ID])
		}
		if e.CategoryName == "" {
			unresolved = append(unresolved, row.ID)
		}
		next = append(next, e)
	}

	if len(unresolved) > 0 {
		persisted, err := s.cache.Load(ctx, unresolved)
		if err != nil {
			s.log.WithError(err).Warn("Failed to read local category cache")
		}
		for i := range next {
			if next[i].CategoryName == "" {
				next[i].CategoryName = persisted[next[i].ID]
			}
		}
	}

	sortExpenses(next)

	s.mu.Lock()
	s.rows = next
	s.lastErr = nil
	s.hydrated = true
	s.mu.Unlock()

	refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	s.notify()
	return nil
}

func categoryIDs(rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.CategoryID == nil || *row.CategoryID == "" {
			continue
		}
		if _, ok := seen[*row.CategoryID]; ok {
			continue
		}
		seen[*row.CategoryID] = struct{}{}
		ids = append(ids, *row.CategoryID)
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

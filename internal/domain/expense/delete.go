package expense

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Delete removes an expense optimistically.
//
// The row disappears from the collection and the cached category name is
// dropped before the backend is asked. If the backend refuses, the previous
// collection is restored as it was and observers are notified again. The
// cache entry stays deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("expense id is required")
	}

	m := newMutation(MutationDelete, id)

	s.mu.Lock()
	previous := s.rows
	s.rows = slices.DeleteFunc(slices.Clone(previous), func(e Expense) bool { return e.ID == id })
	delete(s.transient, id)
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.WithError(err).WithField("expense_id", id).Warn("Failed to drop cached category name")
	}
	s.notify()

	if err := s.repo.Delete(ctx, s.userID, id); err != nil {
		s.mu.Lock()
		s.rows = previous
		s.mu.Unlock()

		s.settle(m, err)
		s.notify()
		return fmt.Errorf("failed to delete expense %s: %w", id, err)
	}

	s.settle(m, nil)
	return nil
}

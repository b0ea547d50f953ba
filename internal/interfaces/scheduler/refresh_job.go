package scheduler

import (
	"context"
	"fmt"
)

// RefreshJob re-syncs one user's expense store with the backend.
type RefreshJob struct {
	userID  string
	refresh func(ctx context.Context) error
}

func NewRefreshJob(userID string, refresh func(ctx context.Context) error) *RefreshJob {
	return &RefreshJob{userID: userID, refresh: refresh}
}

func (j *RefreshJob) Execute(ctx context.Context) error {
	if err := j.refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return nil
}

func (j *RefreshJob) UserID() string {
	return j.userID
}

func (j *RefreshJob) Description() string {
	return "Expense refresh"
}

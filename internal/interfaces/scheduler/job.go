package scheduler

import "context"

// Job is a unit of work run by the WorkerPool.
type Job interface {
	// Execute runs the job. ctx carries the pool's per-job timeout.
	Execute(ctx context.Context) error

	// UserID returns the user the job works for, for logs and traces.
	UserID() string

	// Description returns a human-readable description of the job.
	Description() string
}

package expense

import "context"

// Repository is the remote expense table.
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// List returns the user's expenses, newest first, bounded by opts.Limit
	List(ctx context.Context, userID string, opts ListOptions) ([]Row, error)

	// Insert creates a row and returns it with the fields assigned by the backend
	Insert(ctx context.Context, params InsertParams) (*Row, error)

	// Delete removes a single row; a row that is already gone is not an error
	Delete(ctx context.Context, userID, id string) error
}

// CategoryRepository is the remote category lookup.
type CategoryRepository interface {
	// CheckTable returns nil when the table exists and can be read
	CheckTable(ctx context.Context, table string) error

	// FindByName returns nil, nil when no category matches
	FindByName(ctx context.Context, table, name string, caseInsensitive bool) (*Category, error)

	// NamesByID maps category ids to names; unknown ids are absent from the result
	NamesByID(ctx context.Context, table string, ids []string) (map[string]string, error)
}

// CategoryCache persists category names keyed by expense id across restarts.
type CategoryCache interface {
	Load(ctx context.Context, expenseIDs []string) (map[string]string, error)
	Set(ctx context.Context, expenseID, name string) error
	Delete(ctx context.Context, expenseID string) error
}

// Changefeed wakes a subscriber whenever the user's expenses change remotely.
type Changefeed interface {
	Subscribe(userID string, notify func()) (release func(), err error)
}

// RefreshScheduler decides where realtime-triggered refreshes run.
type RefreshScheduler interface {
	ScheduleRefresh(userID string, refresh func(ctx context.Context) error)
}

package profile

import "context"

// Repository is the remote profiles table, keyed by user id.
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Get returns nil, nil when the user has no profile yet
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert creates or replaces the user's profile
	Upsert(ctx context.Context, userID string, p Profile) error
}

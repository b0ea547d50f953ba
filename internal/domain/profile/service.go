package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Service contains the business logic for profile operations
type Service struct {
	repo Repository
	log  logrus.FieldLogger
}

// NewService creates a new profile service
func NewService(repo Repository, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{repo: repo, log: log.WithField("component", "profile")}
}

// Get returns the user's profile, or nil when there is none.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Save replaces the user's profile. Fields are trimmed and blank ones are
// stored as null.
func (s *Service) Save(ctx context.Context, userID string, p Profile) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrUserIDRequired
	}

	p = p.normalize()
	if err := s.repo.Upsert(ctx, userID, p); err != nil {
		return Profile{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// EnsureFromMetadata returns the user's profile, creating it from the
// sign-up metadata carried in their token when none exists yet. An existing
// profile is never overwritten. It returns nil when there is no profile and
// the metadata holds nothing to create one from.
func (s *Service) EnsureFromMetadata(ctx context.Context, userID string, metadata map[string]any) (*Profile, error) {
	existing, err := s.Get(ctx, userID)
	if err != nil || existing != nil {
		return existing, err
	}

	next := fromMetadata(metadata)
	if next.IsEmpty() {
		return nil, nil
	}

	if err := s.repo.Upsert(ctx, userID, next); err != nil {
		return nil, fmt.Errorf("failed to create profile from sign-up data: %w", err)
	}
	s.log.WithField("user_id", userID).Info("Created profile from sign-up data")
	return &next, nil
}

package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gastos/internal/domain/profile"
)

const (
	profilesTable = "profiles"
	profileSelect = "full_name,phone,address"
	upsertPrefer  = "resolution=merge-duplicates,return=minimal"
)

type profileUpsert struct {
	ID string `json:"id"`
	profile.Profile
}

// ProfileRepository implements profile.Repository over the REST gateway.
type ProfileRepository struct {
	client *Client
}

func NewProfileRepository(client *Client) *ProfileRepository {
	return &ProfileRepository{client: client}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	q := url.Values{}
	q.Set("select", profileSelect)
	q.Set("id", eq(userID))
	q.Set("limit", "1")

	var out []profile.Profile
	if err := r.client.do(ctx, http.MethodGet, profilesTable, q, nil, "", &out); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, userID string, p profile.Profile) error {
	q := url.Values{}
	q.Set("on_conflict", "id")

	body := profileUpsert{ID: userID, Profile: p}
	if err := r.client.do(ctx, http.MethodPost, profilesTable, q, body, upsertPrefer, nil); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

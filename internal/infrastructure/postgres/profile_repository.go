package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gastos/internal/domain/profile"
)

type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	query := `
		SELECT full_name, phone, address
		FROM profiles
		WHERE id = $1
	`

	var fullName, phone, address sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&fullName, &phone, &address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile.Profile{
		FullName: nullableString(fullName),
		Phone:    nullableString(phone),
		Address:  nullableString(address),
	}, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, userID string, p profile.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, phone, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			updated_at = now()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, p.FullName, p.Phone, p.Address); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ProviderPrefRepo stores each user's selected analysis provider.
type ProviderPrefRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewProviderPrefRepo constructs a ProviderPrefRepo.
func NewProviderPrefRepo(db *sql.DB, cfg RepoConfig) *ProviderPrefRepo {
	return &ProviderPrefRepo{DB: db, clock: cfg.clock()}
}

// ActiveProvider returns the user's provider, or "" when none is stored.
func (r *ProviderPrefRepo) ActiveProvider(ctx context.Context, userID int64) (string, error) {
	var provider string
	err := withQuerier(ctx, r.DB, func(q querier) error {
		return q.QueryRow(ctx,
			`SELECT active_provider FROM user_provider_preferences WHERE user_id = $1`, userID).Scan(&provider)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get provider preference: %w", err)
	}
	return provider, nil
}

// Set stores the user's provider.
func (r *ProviderPrefRepo) Set(ctx context.Context, userID int64, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return errors.New("provider is required")
	}
	now := r.clock.Now().UTC()
	return withQuerier(ctx, r.DB, func(q querier) error {
		if _, err := q.Exec(ctx, `
			INSERT INTO user_provider_preferences (user_id, active_provider, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE
			SET active_provider = EXCLUDED.active_provider,
			    updated_at = EXCLUDED.updated_at
		`, userID, provider, now); err != nil {
			return fmt.Errorf("set provider preference: %w", err)
		}
		return nil
	})
}

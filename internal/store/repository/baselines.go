package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/store"
)

// BaselineRepository stores league baselines. Rows are appended, never updated.
type BaselineRepository struct {
	db *store.Database
}

// NewBaselineRepository creates a new baseline repository
func NewBaselineRepository(db *store.Database) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// LatestBaseline returns the most recently created baseline.
func (r *BaselineRepository) LatestBaseline(ctx context.Context) (*models.LeagueBaseline, error) {
	row := &store.BaselineRow{}
	err := r.db.DB().QueryRowContext(ctx, `
		SELECT baseline_id, created_at, players, games_played, baseline
		FROM league_baselines
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&row.BaselineID, &row.CreatedAt, &row.Players, &row.GamesPlayed, &row.Baseline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("league baseline: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying league baseline: %w", err)
	}
	return row.LeagueBaseline()
}

// AppendBaseline inserts a new baseline.
func (r *BaselineRepository) AppendBaseline(ctx context.Context, lg *models.LeagueBaseline) error {
	data, err := json.Marshal(lg)
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}

	_, err = r.db.DB().ExecContext(ctx, `
		INSERT INTO league_baselines (baseline_id, created_at, players, games_played, baseline)
		VALUES ($1, $2, $3, $4, $5)
	`, lg.ID, lg.CreatedAt, lg.Players, lg.GamesPlayed, data)
	if err != nil {
		return fmt.Errorf("inserting baseline %s: %w", lg.ID, err)
	}
	return nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/courtside/internal/models"
)

// PlayerRow is a row of the players table.
type PlayerRow struct {
	PlayerID  string         `db:"player_id"`
	Name      string         `db:"name"`
	Aliases   pq.StringArray `db:"aliases"`
	FTPerc    float64        `db:"ft_perc"`
	Elo       float64        `db:"elo"`
	Aggregate []byte         `db:"aggregate"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Player converts the row to its domain form.
func (r *PlayerRow) Player() (*models.Player, error) {
	p := &models.Player{
		ID:        r.PlayerID,
		Name:      r.Name,
		Aliases:   []string(r.Aliases),
		FTPerc:    r.FTPerc,
		Elo:       r.Elo,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Aggregate) > 0 {
		p.Aggregate = &models.PlayerAggregate{}
		if err := json.Unmarshal(r.Aggregate, p.Aggregate); err != nil {
			return nil, fmt.Errorf("decoding aggregate for player %s: %w", r.PlayerID, err)
		}
	}
	return p, nil
}

// GameRow is a row of the player_games table. The derived record is stored
// whole as JSONB and never updated.
type GameRow struct {
	GameID    string         `db:"game_id"`
	UploadID  string         `db:"upload_id"`
	PlayerID  sql.NullString `db:"player_id"`
	Pos       int            `db:"pos"`
	PlayedAt  time.Time      `db:"played_at"`
	Record    []byte         `db:"record"`
	CreatedAt time.Time      `db:"created_at"`
}

// NewGameRow encodes a derived record for insertion.
func NewGameRow(rec models.DerivedGameRecord) (*GameRow, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding game record %s: %w", rec.ID, err)
	}
	return &GameRow{
		GameID:   rec.ID,
		UploadID: rec.UploadID,
		PlayerID: sql.NullString{String: rec.PlayerID, Valid: rec.Identified()},
		Pos:      rec.Pos,
		PlayedAt: rec.PlayedAt,
		Record:   data,
	}, nil
}

// Decode decodes the stored derived record.
func (r *GameRow) Decode() (models.DerivedGameRecord, error) {
	var rec models.DerivedGameRecord
	if err := json.Unmarshal(r.Record, &rec); err != nil {
		return rec, fmt.Errorf("decoding game record %s: %w", r.GameID, err)
	}
	rec.ID = r.GameID
	return rec, nil
}

// UploadRow is a row of the uploads table.
type UploadRow struct {
	UploadID   string    `db:"upload_id"`
	UploadedAt time.Time `db:"uploaded_at"`
	Payload    []byte    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

// Upload decodes the stored upload.
func (r *UploadRow) Upload() (models.Upload, error) {
	var u models.Upload
	if err := json.Unmarshal(r.Payload, &u); err != nil {
		return u, fmt.Errorf("decoding upload %s: %w", r.UploadID, err)
	}
	u.ID = r.UploadID
	u.UploadedAt = r.UploadedAt
	return u, nil
}

// BaselineRow is a row of the league_baselines table.
type BaselineRow struct {
	BaselineID  string    `db:"baseline_id"`
	CreatedAt   time.Time `db:"created_at"`
	Players     int       `db:"players"`
	GamesPlayed int       `db:"games_played"`
	Baseline    []byte    `db:"baseline"`
}

// LeagueBaseline decodes the stored baseline.
func (r *BaselineRow) LeagueBaseline() (*models.LeagueBaseline, error) {
	lg := &models.LeagueBaseline{}
	if err := json.Unmarshal(r.Baseline, lg); err != nil {
		return nil, fmt.Errorf("decoding baseline %s: %w", r.BaselineID, err)
	}
	lg.ID = r.BaselineID
	lg.CreatedAt = r.CreatedAt
	return lg, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/store"
)

// GameRepository handles uploads and the append-only game history.
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// SaveGame stores an upload, its derived records and the Elo ratings the game
// produced in one transaction. An upload ID that is already stored fails with
// store.ErrDuplicate and writes nothing.
func (r *GameRepository) SaveGame(ctx context.Context, upload models.Upload, records []models.DerivedGameRecord, ratings models.EloMap) error {
	payload, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}

	rows := make([]*store.GameRow, 0, len(records))
	for _, rec := range records {
		row, err := store.NewGameRow(rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO uploads (upload_id, uploaded_at, payload)
			VALUES ($1, $2, $3)
			ON CONFLICT (upload_id) DO NOTHING
		`, upload.ID, upload.UploadedAt, payload)
		if err != nil {
			return fmt.Errorf("inserting upload %s: %w", upload.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("upload %s: %w", upload.ID, store.ErrDuplicate)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO player_games (game_id, upload_id, player_id, pos, played_at, record)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("preparing game insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx,
				row.GameID, row.UploadID, row.PlayerID, row.Pos, row.PlayedAt, row.Record,
			); err != nil {
				return fmt.Errorf("inserting game %s: %w", row.GameID, err)
			}
		}

		return updateElo(ctx, tx, ratings)
	})
}

// GamesForPlayer returns a player's history, oldest first.
func (r *GameRepository) GamesForPlayer(ctx context.Context, playerID string) ([]models.DerivedGameRecord, error) {
	query := `
		SELECT game_id, upload_id, player_id, pos, played_at, record, created_at
		FROM player_games
		WHERE player_id = $1
		ORDER BY played_at, game_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("querying games for %s: %w", playerID, err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// ListGames returns every stored record, oldest first.
func (r *GameRepository) ListGames(ctx context.Context) ([]models.DerivedGameRecord, error) {
	query := `
		SELECT game_id, upload_id, player_id, pos, played_at, record, created_at
		FROM player_games
		ORDER BY played_at, created_at, game_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// DeleteGames removes records by ID and returns how many were deleted.
// Uploads left without any record are removed with them, so Elo replays
// skip them.
func (r *GameRepository) DeleteGames(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM player_games WHERE game_id = ANY($1)`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("deleting games: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM uploads u
			WHERE NOT EXISTS (SELECT 1 FROM player_games g WHERE g.upload_id = u.upload_id)
		`); err != nil {
			return fmt.Errorf("deleting emptied uploads: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListUploads returns every upload in upload order.
func (r *GameRepository) ListUploads(ctx context.Context) ([]models.Upload, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT upload_id, uploaded_at, payload, created_at
		FROM uploads
		ORDER BY uploaded_at, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		row := &store.UploadRow{}
		if err := rows.Scan(&row.UploadID, &row.UploadedAt, &row.Payload, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning upload: %w", err)
		}
		u, err := row.Upload()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func scanGames(rows *sql.Rows) ([]models.DerivedGameRecord, error) {
	var records []models.DerivedGameRecord
	for rows.Next() {
		row := &store.GameRow{}
		err := rows.Scan(
			&row.GameID, &row.UploadID, &row.PlayerID, &row.Pos,
			&row.PlayedAt, &row.Record, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		rec, err := row.Decode()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

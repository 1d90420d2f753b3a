package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/store"
)

const playerColumns = `player_id, name, aliases, ft_perc, elo, aggregate, created_at, updated_at`

// PlayerRepository handles player data access
type PlayerRepository struct {
	db *store.Database
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *store.Database) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetPlayer finds a player by ID
func (r *PlayerRepository) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE player_id = $1`

	p, err := scanPlayer(r.db.DB().QueryRowContext(ctx, query, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}
	return p, nil
}

// FindPlayerByAlias matches a captured name against player names and aliases,
// ignoring case and repeated whitespace.
func (r *PlayerRepository) FindPlayerByAlias(ctx context.Context, name string) (*models.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE lower(name) = $1
		   OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE lower(a) = $1)
		ORDER BY created_at
		LIMIT 1
	`

	p, err := scanPlayer(r.db.DB().QueryRowContext(ctx, query, models.NormalizeAlias(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alias %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying player by alias: %w", err)
	}
	return p, nil
}

// ListPlayers returns all players
func (r *PlayerRepository) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players ORDER BY name`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CreatePlayer inserts a new player.
func (r *PlayerRepository) CreatePlayer(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (player_id, name, aliases, ft_perc, elo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		p.ID, p.Name, pq.StringArray(p.Aliases), p.FTPerc, p.Elo,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting player: %w", err)
	}
	return nil
}

// UpdatePlayerDetails replaces a player's free throw percentage and aliases.
// It fails with store.ErrDuplicate when another player already answers to
// one of the aliases.
func (r *PlayerRepository) UpdatePlayerDetails(ctx context.Context, playerID string, ftPerc float64, aliases []string) error {
	normalized := make([]string, len(aliases))
	for i, a := range aliases {
		normalized[i] = models.NormalizeAlias(a)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var taken string
		err := tx.QueryRowContext(ctx, `
			SELECT name FROM players
			WHERE player_id <> $1
			  AND (lower(name) = ANY($2)
			       OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE lower(a) = ANY($2)))
			LIMIT 1
			FOR UPDATE
		`, playerID, pq.StringArray(normalized)).Scan(&taken)
		switch {
		case err == nil:
			return fmt.Errorf("alias already belongs to %s: %w", taken, store.ErrDuplicate)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("checking aliases: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE players
			SET ft_perc = $2, aliases = $3, updated_at = NOW()
			WHERE player_id = $1
		`, playerID, ftPerc, pq.StringArray(aliases))
		if err != nil {
			return fmt.Errorf("updating player details: %w", err)
		}
		return requireRow(res, "player "+playerID)
	})
}

// SaveAggregate overwrites a player's aggregate.
func (r *PlayerRepository) SaveAggregate(ctx context.Context, playerID string, agg *models.PlayerAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}

	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE players
		SET aggregate = $2, updated_at = NOW()
		WHERE player_id = $1
	`, playerID, data)
	if err != nil {
		return fmt.Errorf("updating aggregate: %w", err)
	}
	return requireRow(res, "player "+playerID)
}

// GetEloMap returns the stored Elo for each known player in ids.
func (r *PlayerRepository) GetEloMap(ctx context.Context, ids []string) (models.EloMap, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT player_id, elo FROM players WHERE player_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying elo: %w", err)
	}
	defer rows.Close()

	ratings := make(models.EloMap, len(ids))
	for rows.Next() {
		var (
			id  string
			elo float64
		)
		if err := rows.Scan(&id, &elo); err != nil {
			return nil, fmt.Errorf("scanning elo: %w", err)
		}
		ratings[id] = elo
	}
	return ratings, rows.Err()
}

// SaveElo writes every rating in one transaction.
func (r *PlayerRepository) SaveElo(ctx context.Context, ratings models.EloMap) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return updateElo(ctx, tx, ratings)
	})
}

func updateElo(ctx context.Context, tx *sql.Tx, ratings models.EloMap) error {
	if len(ratings) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE players SET elo = $2, updated_at = NOW() WHERE player_id = $1`)
	if err != nil {
		return fmt.Errorf("preparing elo update: %w", err)
	}
	defer stmt.Close()

	for id, elo := range ratings {
		if _, err := stmt.ExecContext(ctx, id, elo); err != nil {
			return fmt.Errorf("updating elo for %s: %w", id, err)
		}
	}
	return nil
}

// ResetElo sets every player back to the initial rating.
func (r *PlayerRepository) ResetElo(ctx context.Context) error {
	if _, err := r.db.DB().ExecContext(ctx, `UPDATE players SET elo = $1, updated_at = NOW()`, models.InitialElo); err != nil {
		return fmt.Errorf("resetting elo: %w", err)
	}
	return nil
}

func scanPlayer(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Player, error) {
	row := &store.PlayerRow{}
	err := scanner.Scan(
		&row.PlayerID, &row.Name, &row.Aliases, &row.FTPerc, &row.Elo,
		&row.Aggregate, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row.Player()
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

package repository

import "github.com/fortuna/courtside/internal/store"

// Store bundles the repositories behind the single persistence interface the
// services consume.
type Store struct {
	*PlayerRepository
	*GameRepository
	*BaselineRepository
}

// NewStore builds every repository over one database.
func NewStore(db *store.Database) *Store {
	return &Store{
		PlayerRepository:   NewPlayerRepository(db),
		GameRepository:     NewGameRepository(db),
		BaselineRepository: NewBaselineRepository(db),
	}
}

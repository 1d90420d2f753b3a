package service_test

import (
	"context"
	"strings"
	"sync"

	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/store"
)

// memStore is an in-memory service.Store.
type memStore struct {
	mu        sync.Mutex
	players   map[string]*models.Player
	order     []string
	games     []models.DerivedGameRecord
	uploads   []models.Upload
	baselines []*models.LeagueBaseline
}

func newMemStore() *memStore {
	return &memStore{players: make(map[string]*models.Player)}
}

func clonePlayer(p *models.Player) *models.Player {
	c := *p
	c.Aliases = append([]string(nil), p.Aliases...)
	if p.Aggregate != nil {
		agg := *p.Aggregate
		c.Aggregate = &agg
	}
	return &c
}

func (s *memStore) GetPlayer(_ context.Context, playerID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePlayer(p), nil
}

func (s *memStore) FindPlayerByAlias(_ context.Context, name string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		p := s.players[id]
		if p.HasAlias(name) {
			return clonePlayer(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) ListPlayers(_ context.Context) ([]*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clonePlayer(s.players[id]))
	}
	return out, nil
}

func (s *memStore) CreatePlayer(_ context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = clonePlayer(p)
	s.order = append(s.order, p.ID)
	return nil
}

func (s *memStore) UpdatePlayerDetails(_ context.Context, playerID string, ftPerc float64, aliases []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return store.ErrNotFound
	}
	for id, other := range s.players {
		if id == playerID {
			continue
		}
		for _, a := range aliases {
			if other.HasAlias(a) {
				return store.ErrDuplicate
			}
		}
	}
	p.FTPerc = ftPerc
	p.Aliases = append([]string(nil), aliases...)
	return nil
}

func (s *memStore) SaveAggregate(_ context.Context, playerID string, agg *models.PlayerAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return store.ErrNotFound
	}
	c := *agg
	p.Aggregate = &c
	return nil
}

func (s *memStore) GetEloMap(_ context.Context, ids []string) (models.EloMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.EloMap, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out[id] = p.Elo
		}
	}
	return out, nil
}

func (s *memStore) SaveElo(_ context.Context, ratings models.EloMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range ratings {
		if p, ok := s.players[id]; ok {
			p.Elo = r
		}
	}
	return nil
}

func (s *memStore) ResetElo(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		p.Elo = models.InitialElo
	}
	return nil
}

func (s *memStore) SaveGame(_ context.Context, upload models.Upload, records []models.DerivedGameRecord, ratings models.EloMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.uploads {
		if u.ID == upload.ID {
			return store.ErrDuplicate
		}
	}
	s.uploads = append(s.uploads, upload)
	s.games = append(s.games, records...)
	for id, r := range ratings {
		if p, ok := s.players[id]; ok {
			p.Elo = r
		}
	}
	return nil
}

func (s *memStore) GamesForPlayer(_ context.Context, playerID string) ([]models.DerivedGameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DerivedGameRecord
	for _, g := range s.games {
		if g.PlayerID == playerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memStore) ListGames(_ context.Context) ([]models.DerivedGameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DerivedGameRecord(nil), s.games...), nil
}

func (s *memStore) DeleteGames(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	kept := s.games[:0]
	var n int64
	for _, g := range s.games {
		if doomed[g.ID] {
			n++
			continue
		}
		kept = append(kept, g)
	}
	s.games = kept

	live := make(map[string]bool, len(s.uploads))
	for _, g := range s.games {
		live[g.UploadID] = true
	}
	uploads := s.uploads[:0]
	for _, u := range s.uploads {
		if live[u.ID] {
			uploads = append(uploads, u)
		}
	}
	s.uploads = uploads
	return n, nil
}

func (s *memStore) ListUploads(_ context.Context) ([]models.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Upload(nil), s.uploads...), nil
}

func (s *memStore) LatestBaseline(_ context.Context) (*models.LeagueBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.baselines) == 0 {
		return nil, store.ErrNotFound
	}
	lg := *s.baselines[len(s.baselines)-1]
	return &lg, nil
}

func (s *memStore) AppendBaseline(_ context.Context, lg *models.LeagueBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *lg
	s.baselines = append(s.baselines, &c)
	return nil
}

func (s *memStore) playerByName(name string) *models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return clonePlayer(p)
		}
	}
	return nil
}

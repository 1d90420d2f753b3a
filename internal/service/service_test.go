package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/cache"
	"github.com/fortuna/courtside/internal/elo"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/publisher"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
)

type recordingPublisher struct {
	mu        sync.Mutex
	elo       []publisher.EloUpdate
	ratings   []string
	uploads   []publisher.GameUploaded
	baselines []string
}

func (p *recordingPublisher) PublishEloUpdate(_ context.Context, u publisher.EloUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elo = append(p.elo, u)
	return nil
}

func (p *recordingPublisher) PublishPlayerRating(_ context.Context, agg *models.PlayerAggregate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratings = append(p.ratings, agg.PlayerID)
	return nil
}

func (p *recordingPublisher) PublishGameUploaded(_ context.Context, e publisher.GameUploaded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, e)
	return nil
}

func (p *recordingPublisher) PublishBaseline(_ context.Context, lg *models.LeagueBaseline) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baselines = append(p.baselines, lg.ID)
	return nil
}

type memCache struct {
	mu       sync.Mutex
	baseline *models.LeagueBaseline
	players  map[string]*models.Player
}

func newMemCache() *memCache {
	return &memCache{players: make(map[string]*models.Player)}
}

func (c *memCache) Baseline(context.Context) (*models.LeagueBaseline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline == nil {
		return nil, cache.ErrMiss
	}
	return c.baseline, nil
}

func (c *memCache) SetBaseline(_ context.Context, lg *models.LeagueBaseline) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = lg
	return nil
}

func (c *memCache) InvalidateBaseline(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = nil
	return nil
}

func (c *memCache) Player(_ context.Context, id string) (*models.Player, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return p, nil
}

func (c *memCache) SetPlayer(_ context.Context, p *models.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[p.ID] = p
	return nil
}

func (c *memCache) InvalidatePlayers(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.players, id)
	}
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newServices(t *testing.T) (*service.Services, *memStore, *recordingPublisher) {
	t.Helper()
	st := newMemStore()
	pub := &recordingPublisher{}
	svc := service.New(st, service.Options{Publisher: pub, Logger: quietLogger(), Concurrency: 2})
	return svc, st, pub
}

func game(n int) models.Upload {
	return models.Upload{
		ID:         fmt.Sprintf("upload-%d", n),
		UploadedAt: time.Date(2024, 3, n, 20, 0, 0, 0, time.UTC),
		Teams: []models.RawTeamBoxScore{
			{Team: models.TeamOne, Counting: models.Counting{Pts: 62, Treb: 30, Ast: 14, Stl: 6, Blk: 3, PF: 8, TOV: 9, FGM: 25, FGA: 55, ThreePM: 6, ThreePA: 20}},
			{Team: models.TeamTwo, Counting: models.Counting{Pts: 55, Treb: 26, Ast: 12, Stl: 5, Blk: 2, PF: 10, TOV: 11, FGM: 22, FGA: 52, ThreePM: 5, ThreePA: 18}},
		},
		Players: []models.RawPlayerBoxScore{
			{Name: "Alpha", Team: models.TeamOne, Pos: 1, OppPos: 1, Grade: "B+", Counting: models.Counting{Pts: 20, Treb: 6, Ast: 5, Stl: 2, PF: 2, TOV: 3, FGM: 8, FGA: 15, ThreePM: 2, ThreePA: 6}},
			{Name: "Bravo", Team: models.TeamOne, Pos: 2, OppPos: 2, Grade: "A", Counting: models.Counting{Pts: 14, Treb: 9, Ast: 3, Stl: 1, Blk: 1, PF: 1, TOV: 2, FGM: 6, FGA: 12, ThreePM: 1, ThreePA: 4}},
			{Name: "cpu", Team: models.TeamOne, Pos: 3, IsAI: true, Counting: models.Counting{Pts: 28, Treb: 15, Ast: 6, Stl: 3, Blk: 2, PF: 5, TOV: 4, FGM: 11, FGA: 28, ThreePM: 3, ThreePA: 10}},
			{Name: "Charlie", Team: models.TeamTwo, Pos: 1, OppPos: 1, Grade: "C", Counting: models.Counting{Pts: 18, Treb: 4, Ast: 6, Stl: 2, PF: 3, TOV: 4, FGM: 7, FGA: 16, ThreePM: 2, ThreePA: 7}},
			{Name: "Delta", Team: models.TeamTwo, Pos: 2, OppPos: 2, Grade: "B", Counting: models.Counting{Pts: 37, Treb: 22, Ast: 6, Stl: 3, Blk: 2, PF: 7, TOV: 7, FGM: 15, FGA: 36, ThreePM: 3, ThreePA: 11}},
		},
	}
}

func uploadGames(t *testing.T, svc *service.Services, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if _, err := svc.Uploads.Upload(context.Background(), game(i)); err != nil {
			t.Fatalf("Upload(%d) error = %v", i, err)
		}
	}
}

func TestUploadCreatesPlayersAndStoresRecords(t *testing.T) {
	svc, st, pub := newServices(t)

	res, err := svc.Uploads.Upload(context.Background(), game(1))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if res.Records != 5 {
		t.Errorf("Records = %d, want 5", res.Records)
	}
	if len(res.PlayerIDs) != 4 || len(res.Created) != 4 {
		t.Errorf("PlayerIDs = %v, Created = %v, want 4 each", res.PlayerIDs, res.Created)
	}
	if res.Baseline {
		t.Error("Baseline = true with no baseline stored")
	}
	if st.playerByName("cpu") != nil {
		t.Error("AI line created a player")
	}
	if len(st.uploads) != 1 || len(st.games) != 5 {
		t.Fatalf("stored %d uploads and %d games, want 1 and 5", len(st.uploads), len(st.games))
	}
	for _, line := range st.uploads[0].Players {
		if !line.IsAI && line.PlayerID == "" {
			t.Errorf("stored line %q has no player id", line.Name)
		}
	}
	if len(pub.uploads) != 1 || len(pub.elo) != 1 {
		t.Errorf("published %d upload and %d elo events, want 1 each", len(pub.uploads), len(pub.elo))
	}

	// A second game resolves the same names case-insensitively.
	res, err = svc.Uploads.Upload(context.Background(), game(2))
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if len(res.Created) != 0 {
		t.Errorf("second upload created %v", res.Created)
	}
}

func TestUploadRejectsMalformedGame(t *testing.T) {
	svc, st, _ := newServices(t)

	bad := game(1)
	bad.Teams = bad.Teams[:1]
	if _, err := svc.Uploads.Upload(context.Background(), bad); err == nil {
		t.Fatal("Upload() with one team succeeded")
	}
	if len(st.games) != 0 || len(st.players) != 0 {
		t.Error("malformed upload left data behind")
	}
}

func TestUploadAppliesEloAsOneBatch(t *testing.T) {
	svc, st, _ := newServices(t)

	res, err := svc.Uploads.Upload(context.Background(), game(1))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(res.Elo) != 4 {
		t.Fatalf("Elo has %d entries, want 4", len(res.Elo))
	}

	// Everyone starts equal, so the pairwise changes cancel out.
	var sum float64
	moved := false
	for id, r := range res.Elo {
		sum += r - models.InitialElo
		if r != models.InitialElo {
			moved = true
		}
		p, err := st.GetPlayer(context.Background(), id)
		if err != nil {
			t.Fatalf("GetPlayer(%s) error = %v", id, err)
		}
		if p.Elo != r {
			t.Errorf("stored elo %v, result %v", p.Elo, r)
		}
	}
	if !moved {
		t.Error("no rating moved")
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("sum of deltas = %v, want 0", sum)
	}

	// Charlie and Delta share a team; the stronger comparison line gains more.
	lines := game(1).Players
	charlieLine, deltaLine := lines[3], lines[4]
	charlie := st.playerByName("Charlie")
	delta := st.playerByName("Delta")
	if elo.ComparisonValue(charlieLine, 55) <= elo.ComparisonValue(deltaLine, 55) {
		t.Fatal("fixture no longer gives Charlie the stronger comparison line")
	}
	if charlie.Elo <= delta.Elo {
		t.Errorf("Charlie %v should outrank Delta %v after a stronger line", charlie.Elo, delta.Elo)
	}
}

func TestAggregatesWaitForMinimumGames(t *testing.T) {
	svc, st, pub := newServices(t)

	uploadGames(t, svc, models.MinGames-1)
	if p := st.playerByName("Alpha"); p.Aggregate != nil {
		t.Fatalf("aggregate stored after %d games", models.MinGames-1)
	}
	if len(pub.ratings) != 0 {
		t.Errorf("published %d ratings before minimum games", len(pub.ratings))
	}

	if _, err := svc.Uploads.Upload(context.Background(), game(models.MinGames)); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	p := st.playerByName("Alpha")
	if p.Aggregate == nil {
		t.Fatal("no aggregate after minimum games")
	}
	if p.Aggregate.GP != models.MinGames {
		t.Errorf("GP = %d, want %d", p.Aggregate.GP, models.MinGames)
	}
	if p.Aggregate.Wins != models.MinGames || p.Aggregate.Losses != 0 {
		t.Errorf("record %d-%d, want %d-0", p.Aggregate.Wins, p.Aggregate.Losses, models.MinGames)
	}
	if p.Aggregate.PER != nil || p.Aggregate.Rating != nil {
		t.Error("PER or rating set without a league baseline")
	}
	if p.Aggregate.Pts == nil || *p.Aggregate.Pts != 20 {
		t.Errorf("Pts = %v, want 20", p.Aggregate.Pts)
	}
}

func TestLeagueGenerate(t *testing.T) {
	st := newMemStore()
	c := newMemCache()
	pub := &recordingPublisher{}
	svc := service.New(st, service.Options{Publisher: pub, Cache: c, Logger: quietLogger()})
	ctx := context.Background()

	if _, err := svc.League.Latest(ctx); !errors.Is(err, service.ErrNoBaseline) {
		t.Fatalf("Latest() error = %v, want ErrNoBaseline", err)
	}

	uploadGames(t, svc, 3)

	lg, err := svc.League.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if lg.PER != 15 {
		t.Errorf("PER = %v, want 15", lg.PER)
	}
	if lg.Players != 4 {
		t.Errorf("Players = %d, want 4", lg.Players)
	}
	if c.baseline == nil || c.baseline.ID != lg.ID {
		t.Error("cache not refreshed with the new baseline")
	}
	if len(pub.baselines) != 1 {
		t.Errorf("published %d baselines, want 1", len(pub.baselines))
	}

	latest, err := svc.League.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != lg.ID {
		t.Errorf("Latest().ID = %s, want %s", latest.ID, lg.ID)
	}

	summary, err := svc.Aggregates.RecalculateAll(ctx, nil)
	if err != nil {
		t.Fatalf("RecalculateAll() error = %v", err)
	}
	if !summary.Baseline || summary.Updated != 4 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 4 updated with baseline", summary)
	}
}

func TestLeagueGenerateWithoutPlayers(t *testing.T) {
	svc, _, _ := newServices(t)
	if _, err := svc.League.Generate(context.Background()); err == nil {
		t.Fatal("Generate() with no players succeeded")
	}
}

func TestRecalculateAllReportsProgress(t *testing.T) {
	svc, _, _ := newServices(t)
	uploadGames(t, svc, 2)

	var mu sync.Mutex
	calls := 0
	summary, err := svc.Aggregates.RecalculateAll(context.Background(), func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
	})
	if err != nil {
		t.Fatalf("RecalculateAll() error = %v", err)
	}
	if calls != 4 {
		t.Errorf("progress called %d times, want 4", calls)
	}
	if summary.Skipped != 4 || summary.Updated != 0 {
		t.Errorf("summary = %+v, want 4 skipped", summary)
	}
}

func TestEloRegenerateMatchesSequentialRating(t *testing.T) {
	svc, st, _ := newServices(t)
	uploadGames(t, svc, 3)

	players, _ := st.ListPlayers(context.Background())
	want := make(map[string]float64, len(players))
	for _, p := range players {
		want[p.ID] = p.Elo
	}

	got, err := svc.Elo.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Regenerate() rated %d players, want %d", len(got), len(want))
	}
	for id, r := range want {
		if math.Abs(got[id]-r) > 1e-9 {
			t.Errorf("player %s: replayed %v, sequential %v", id, got[id], r)
		}
	}
}

func TestRemoveDuplicatesKeepsFirstCopy(t *testing.T) {
	svc, st, _ := newServices(t)
	uploadGames(t, svc, 3)

	first := make(map[string]bool)
	for _, g := range st.games[:5] {
		first[g.ID] = true
	}

	res, err := svc.Games.RemoveDuplicates(context.Background())
	if err != nil {
		t.Fatalf("RemoveDuplicates() error = %v", err)
	}
	if res.Scanned != 15 || res.Groups != 5 || res.Deleted != 10 {
		t.Errorf("result = %+v, want 15 scanned, 5 groups, 10 deleted", res)
	}
	if len(res.PlayerIDs) != 4 {
		t.Errorf("affected players = %v, want 4", res.PlayerIDs)
	}
	if len(st.games) != 5 {
		t.Fatalf("%d games left, want 5", len(st.games))
	}
	for _, g := range st.games {
		if !first[g.ID] {
			t.Errorf("kept game %s is not from the first upload", g.ID)
		}
	}

	again, err := svc.Games.RemoveDuplicates(context.Background())
	if err != nil {
		t.Fatalf("second RemoveDuplicates() error = %v", err)
	}
	if again.Deleted != 0 {
		t.Errorf("second pass deleted %d", again.Deleted)
	}
	if len(st.uploads) != 1 || st.uploads[0].ID != "upload-1" {
		t.Errorf("uploads left = %d, want only upload-1 for Elo replays", len(st.uploads))
	}
}

func TestByPosition(t *testing.T) {
	svc, st, _ := newServices(t)
	uploadGames(t, svc, 3)
	alpha := st.playerByName("Alpha")
	ctx := context.Background()

	if _, err := svc.Aggregates.ByPosition(ctx, alpha.ID, 6); !errors.Is(err, service.ErrInvalidPosition) {
		t.Errorf("ByPosition(6) error = %v, want ErrInvalidPosition", err)
	}
	if _, err := svc.Aggregates.ByPosition(ctx, alpha.ID, 4); !errors.Is(err, service.ErrTooFewGames) {
		t.Errorf("ByPosition(4) error = %v, want ErrTooFewGames", err)
	}

	agg, err := svc.Aggregates.ByPosition(ctx, alpha.ID, 1)
	if err != nil {
		t.Fatalf("ByPosition(1) error = %v", err)
	}
	if agg.GP != 3 {
		t.Errorf("GP = %d, want 3", agg.GP)
	}
}

func TestPlayerReadsThroughCache(t *testing.T) {
	st := newMemStore()
	c := newMemCache()
	svc := service.New(st, service.Options{Cache: c, Logger: quietLogger()})
	ctx := context.Background()

	if _, err := svc.Aggregates.Player(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Player(missing) error = %v, want ErrNotFound", err)
	}

	uploadGames(t, svc, 1)
	alpha := st.playerByName("Alpha")

	p, err := svc.Aggregates.Player(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("Player() error = %v", err)
	}
	if p.Name != "Alpha" {
		t.Errorf("Name = %q, want Alpha", p.Name)
	}
	if _, ok := c.players[alpha.ID]; !ok {
		t.Error("player not cached after read")
	}

	uploadGames(t, svc, 1)
	if _, ok := c.players[alpha.ID]; ok {
		t.Error("cached player survived an elo update")
	}
}

// failingStore fails Elo reads or game writes on demand.
type failingStore struct {
	*memStore
	eloErr  error
	saveErr error
}

func (s *failingStore) GetEloMap(ctx context.Context, ids []string) (models.EloMap, error) {
	if s.eloErr != nil {
		return nil, s.eloErr
	}
	return s.memStore.GetEloMap(ctx, ids)
}

func (s *failingStore) SaveGame(ctx context.Context, upload models.Upload, records []models.DerivedGameRecord, ratings models.EloMap) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.memStore.SaveGame(ctx, upload, records, ratings)
}

func TestFailedUploadStoresNothing(t *testing.T) {
	tests := []struct {
		name    string
		eloErr  error
		saveErr error
	}{
		{name: "elo read fails", eloErr: errors.New("elo read failed")},
		{name: "game write fails", saveErr: errors.New("elo write failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &failingStore{memStore: newMemStore(), eloErr: tt.eloErr, saveErr: tt.saveErr}
			svc := service.New(st, service.Options{Logger: quietLogger()})

			if _, err := svc.Uploads.Upload(context.Background(), game(1)); err == nil {
				t.Fatal("Upload() succeeded against a failing store")
			}
			if len(st.games) != 0 || len(st.uploads) != 0 {
				t.Fatalf("failed upload left %d games and %d uploads", len(st.games), len(st.uploads))
			}
			for _, p := range st.players {
				if p.Elo != models.InitialElo {
					t.Errorf("%s elo = %v after a failed upload", p.Name, p.Elo)
				}
			}

			st.eloErr, st.saveErr = nil, nil
			res, err := svc.Uploads.Upload(context.Background(), game(1))
			if err != nil {
				t.Fatalf("retried Upload() error = %v", err)
			}
			if res.Records != 5 || len(st.games) != 5 || len(st.uploads) != 1 {
				t.Errorf("after retry: records %d, games %d, uploads %d; want 5, 5, 1", res.Records, len(st.games), len(st.uploads))
			}
			if len(res.Created) != 0 {
				t.Errorf("retry created players %v; the first attempt already did", res.Created)
			}
		})
	}
}

func TestUploadRejectsRepeatedID(t *testing.T) {
	svc, st, _ := newServices(t)
	uploadGames(t, svc, 1)
	before := st.playerByName("Alpha").Elo

	_, err := svc.Uploads.Upload(context.Background(), game(1))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("Upload() error = %v, want ErrDuplicate", err)
	}
	if len(st.games) != 5 || len(st.uploads) != 1 {
		t.Errorf("repeat left %d games and %d uploads, want 5 and 1", len(st.games), len(st.uploads))
	}
	if got := st.playerByName("Alpha").Elo; got != before {
		t.Errorf("Alpha elo moved from %v to %v on a rejected upload", before, got)
	}
}

func TestUpdateDetails(t *testing.T) {
	st := newMemStore()
	c := newMemCache()
	svc := service.New(st, service.Options{Cache: c, Logger: quietLogger()})
	ctx := context.Background()
	uploadGames(t, svc, 1)
	alpha := st.playerByName("Alpha")

	ft := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		id   string
		upd  service.DetailsUpdate
		want error
	}{
		{"ft above 100", alpha.ID, service.DetailsUpdate{FTPerc: ft(150)}, service.ErrInvalidDetails},
		{"negative ft", alpha.ID, service.DetailsUpdate{FTPerc: ft(-1)}, service.ErrInvalidDetails},
		{"blank alias", alpha.ID, service.DetailsUpdate{Aliases: []string{"  "}}, service.ErrInvalidDetails},
		{"alias held by another player", alpha.ID, service.DetailsUpdate{Aliases: []string{" bravo "}}, store.ErrDuplicate},
		{"unknown player", "nobody", service.DetailsUpdate{FTPerc: ft(80)}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Players.UpdateDetails(ctx, tt.id, tt.upd); !errors.Is(err, tt.want) {
				t.Errorf("UpdateDetails() error = %v, want %v", err, tt.want)
			}
			if got := st.playerByName("Alpha"); got.FTPerc != alpha.FTPerc || len(got.Aliases) != len(alpha.Aliases) {
				t.Errorf("rejected update changed Alpha to ft %v aliases %v", got.FTPerc, got.Aliases)
			}
		})
	}

	if _, err := svc.Aggregates.Player(ctx, alpha.ID); err != nil {
		t.Fatalf("Player() error = %v", err)
	}

	p, err := svc.Players.UpdateDetails(ctx, alpha.ID, service.DetailsUpdate{
		FTPerc:  ft(82.5),
		Aliases: []string{" A-Train ", "alpha", "a-train"},
	})
	if err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	if p.FTPerc != 82.5 {
		t.Errorf("FTPerc = %v, want 82.5", p.FTPerc)
	}
	stored := st.playerByName("Alpha")
	if stored.FTPerc != 82.5 || len(stored.Aliases) != len(alpha.Aliases)+1 {
		t.Errorf("stored ft %v aliases %v, want 82.5 and one new alias", stored.FTPerc, stored.Aliases)
	}
	if _, ok := c.players[alpha.ID]; ok {
		t.Error("cached player survived a details update")
	}

	// The new alias resolves to Alpha on the next upload.
	g := game(2)
	g.Players[0].Name = "a-TRAIN"
	res, err := svc.Uploads.Upload(ctx, g)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(res.Created) != 0 {
		t.Errorf("upload under the new alias created %v", res.Created)
	}
}

func TestLastGames(t *testing.T) {
	svc, st, _ := newServices(t)
	uploadGames(t, svc, 4)
	alpha := st.playerByName("Alpha")
	ctx := context.Background()

	games, err := svc.Players.LastGames(ctx, alpha.ID, 2)
	if err != nil {
		t.Fatalf("LastGames(2) error = %v", err)
	}
	if len(games) != 2 || games[0].UploadID != "upload-4" || games[1].UploadID != "upload-3" {
		t.Errorf("LastGames(2) uploads = %v, want upload-4 then upload-3", uploadIDs(games))
	}
	for _, g := range games {
		if g.PlayerID != alpha.ID {
			t.Errorf("LastGames returned a game for %s", g.PlayerID)
		}
	}

	games, err = svc.Players.LastGames(ctx, alpha.ID, 10)
	if err != nil {
		t.Fatalf("LastGames(10) error = %v", err)
	}
	if len(games) != 4 || games[3].UploadID != "upload-1" {
		t.Errorf("LastGames(10) uploads = %v, want all four newest first", uploadIDs(games))
	}

	if _, err := svc.Players.LastGames(ctx, alpha.ID, 0); !errors.Is(err, service.ErrInvalidLimit) {
		t.Errorf("LastGames(0) error = %v, want ErrInvalidLimit", err)
	}
	if _, err := svc.Players.LastGames(ctx, "nobody", 3); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LastGames(nobody) error = %v, want ErrNotFound", err)
	}
}

func uploadIDs(games []models.DerivedGameRecord) []string {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.UploadID
	}
	return ids
}

func TestAwardsGenerate(t *testing.T) {
	svc, st, _ := newServices(t)
	ctx := context.Background()

	sheet, err := svc.Awards.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate() on an empty league error = %v", err)
	}
	if sheet.Candidates != 0 || sheet.MostActive != nil {
		t.Errorf("empty league sheet = %+v", sheet)
	}

	uploadGames(t, svc, 3)
	if _, err := svc.Aggregates.RecalculateAll(ctx, nil); err != nil {
		t.Fatalf("RecalculateAll() error = %v", err)
	}

	sheet, err = svc.Awards.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if sheet.Candidates != 4 {
		t.Errorf("Candidates = %d, want 4", sheet.Candidates)
	}
	if sheet.MostActive == nil || sheet.MostActive.Value != 3 {
		t.Errorf("MostActive = %+v, want a three game player", sheet.MostActive)
	}
	if sheet.MVP != nil || len(sheet.AllLeagueFirst) != 0 {
		t.Errorf("three game players won MVP %+v or All-League %v", sheet.MVP, sheet.AllLeagueFirst)
	}
	if alpha := st.playerByName("Alpha"); alpha.Aggregate == nil {
		t.Error("Alpha has no aggregate after recompute")
	}
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/courtside/internal/awards"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
)

const (
	maxUploadBytes   = 1 << 20
	defaultGameLimit = 10
)

// Uploader ingests captured games.
type Uploader interface {
	Upload(ctx context.Context, upload models.Upload) (*service.UploadResult, error)
}

// PlayerReader serves player aggregates.
type PlayerReader interface {
	Player(ctx context.Context, playerID string) (*models.Player, error)
	ByPosition(ctx context.Context, playerID string, pos int) (*models.PlayerAggregate, error)
}

// Roster edits player details and serves their recent games.
type Roster interface {
	UpdateDetails(ctx context.Context, playerID string, upd service.DetailsUpdate) (*models.Player, error)
	LastGames(ctx context.Context, playerID string, n int) ([]models.DerivedGameRecord, error)
}

// AwardGenerator computes the season awards.
type AwardGenerator interface {
	Generate(ctx context.Context) (*awards.Awards, error)
}

// BaselineReader serves the current league baseline.
type BaselineReader interface {
	Latest(ctx context.Context) (*models.LeagueBaseline, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backends are the services the handlers call.
type Backends struct {
	Uploads Uploader
	Players PlayerReader
	Roster  Roster
	League  BaselineReader
	Awards  AwardGenerator
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Backends
	checks map[string]HealthChecker
}

// NewHandler creates a new handler. checks maps dependency names to the checks
// reported by the health endpoint.
func NewHandler(b Backends, checks map[string]HealthChecker) *Handler {
	return &Handler{Backends: b, checks: checks}
}

// NewServiceHandler wires a handler to the pipeline services.
func NewServiceHandler(svc *service.Services, checks map[string]HealthChecker) *Handler {
	return NewHandler(Backends{
		Uploads: svc.Uploads,
		Players: svc.Aggregates,
		Roster:  svc.Players,
		League:  svc.League,
		Awards:  svc.Awards,
	}, checks)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	health := "healthy"
	if status != http.StatusOK {
		health = "degraded"
	}
	respondJSON(w, status, map[string]any{
		"status":       health,
		"service":      "courtside",
		"dependencies": deps,
	})
}

// CreateUpload handles POST /api/v1/uploads
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var upload models.Upload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err := dec.Decode(&upload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Uploads.Upload(r.Context(), upload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUpload) {
			respondError(w, http.StatusBadRequest, "Invalid upload", err)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Unknown player", err)
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Upload already stored", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to process upload", err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// GetPlayer handles GET /api/v1/players/{playerID}
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerID"]

	player, err := h.Players.Player(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Player not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch player", err)
		return
	}

	respondJSON(w, http.StatusOK, player)
}

// GetPlayerByPosition handles GET /api/v1/players/{playerID}/positions/{pos}
func (h *Handler) GetPlayerByPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pos, err := strconv.Atoi(vars["pos"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid position", err)
		return
	}

	agg, err := h.Players.ByPosition(r.Context(), vars["playerID"], pos)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, agg)
	case errors.Is(err, service.ErrInvalidPosition):
		respondError(w, http.StatusBadRequest, "Invalid position", err)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Player not found", nil)
	case errors.Is(err, service.ErrTooFewGames):
		respondError(w, http.StatusNotFound, "No games at this position", err)
	default:
		respondError(w, http.StatusInternalServerError, "Failed to compute position view", err)
	}
}

// UpdatePlayerDetails handles PATCH /api/v1/players/{playerID}
func (h *Handler) UpdatePlayerDetails(w http.ResponseWriter, r *http.Request) {
	var upd service.DetailsUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	player, err := h.Roster.UpdateDetails(r.Context(), mux.Vars(r)["playerID"], upd)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, player)
	case errors.Is(err, service.ErrInvalidDetails):
		respondError(w, http.StatusBadRequest, "Invalid player details", err)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Player not found", nil)
	case errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, "Alias already exists", err)
	default:
		respondError(w, http.StatusInternalServerError, "Failed to update player", err)
	}
}

// GetPlayerGames handles GET /api/v1/players/{playerID}/games?limit=N
func (h *Handler) GetPlayerGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultGameLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	games, err := h.Roster.LastGames(r.Context(), mux.Vars(r)["playerID"], limit)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"games": games, "count": len(games)})
	case errors.Is(err, service.ErrInvalidLimit):
		respondError(w, http.StatusBadRequest, "Invalid limit", err)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Player not found", nil)
	default:
		respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
	}
}

// GetAwards handles GET /api/v1/awards
func (h *Handler) GetAwards(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.Awards.Generate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate awards", err)
		return
	}
	respondJSON(w, http.StatusOK, sheet)
}

// GetLeague handles GET /api/v1/league
func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	lg, err := h.League.Latest(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoBaseline) {
			respondError(w, http.StatusNotFound, "No league baseline yet", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch league baseline", err)
		return
	}

	respondJSON(w, http.StatusOK, lg)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

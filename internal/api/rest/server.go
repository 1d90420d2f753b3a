package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Config configures the REST server.
type Config struct {
	Port           string
	AllowedOrigins []string
}

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler http.Handler
}

// NewServer creates a new REST API server
func NewServer(cfg Config, handler *Handler, jobHandler *JobHandler, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(logger.WithField("component", "rest")))
	router.Use(middleware.Recoverer)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Uploads
	api.HandleFunc("/uploads", handler.CreateUpload).Methods("POST")

	// Players
	api.HandleFunc("/players/{playerID}", handler.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{playerID}", handler.UpdatePlayerDetails).Methods("PATCH")
	api.HandleFunc("/players/{playerID}/games", handler.GetPlayerGames).Methods("GET")
	api.HandleFunc("/players/{playerID}/positions/{pos:[0-9]+}", handler.GetPlayerByPosition).Methods("GET")

	// League
	api.HandleFunc("/league", handler.GetLeague).Methods("GET")

	// Awards
	api.HandleFunc("/awards", handler.GetAwards).Methods("GET")

	// Recompute jobs
	if jobHandler != nil {
		api.HandleFunc("/jobs", jobHandler.HandleJobRequest).Methods("POST")
		api.HandleFunc("/jobs/status", jobHandler.HandleJobStatus).Methods("GET")
	}

	// CORS wraps the router so preflight requests never need a route.
	h := CORSMiddleware(cfg.AllowedOrigins)(router)

	return &Server{
		port:    cfg.Port,
		handler: h,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

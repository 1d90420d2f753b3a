package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server exposes the hub over websocket connections.
type Server struct {
	hub      *Hub
	server   *http.Server
	upgrader websocket.Upgrader

	// ctx bounds every client pump; it ends with Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a websocket server for hub. allowedOrigins empty allows
// every origin.
func NewServer(hub *Hub, allowedOrigins []string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{hub: hub, ctx: ctx, cancel: cancel}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

// Handler returns the websocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ratings", s.handleRatings)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start serves the websocket routes on port until Shutdown.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: s.Handler(),
	}
	s.hub.log.WithField("port", port).Info("websocket server listening")
	return s.server.ListenAndServe()
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump(s.ctx)
	go client.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}

// Shutdown closes client connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// internal/handlers/router.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/sudoku-battle/internal/game"
	"github.com/jason-s-yu/sudoku-battle/internal/middleware"
)

// Router mounts the websocket endpoint and the small read-only HTTP surface.
func (ss *SessionServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(ss.Logger))

	r.Get("/health", ss.handleHealth)
	r.Get("/sessions/{code}", ss.handleSessionView)
	r.Get("/ws", ss.WSHandler())
	return r
}

func (ss *SessionServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"sessions": ss.Registry.Len(),
	})
}

// handleSessionView returns the public projection of a session. The solution
// is never included.
func (ss *SessionServer) handleSessionView(w http.ResponseWriter, r *http.Request) {
	s, err := ss.Registry.Get(chi.URLParam(r, "code"))
	if errors.Is(err, game.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		StateView:   s.View(),
		Connections: ss.Hub.RoomSize(s.Code),
		Chat:        s.ChatLog(),
	})
}

// sessionResponse is the state projection plus what only the server knows:
// live connections and the chat backlog.
type sessionResponse struct {
	game.StateView
	Connections int                `json:"connections"`
	Chat        []game.ChatMessage `json:"chat"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

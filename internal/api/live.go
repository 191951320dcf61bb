package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// How often the live stream pushes snapshots. Snapshot reads are cheap and
// side-effect free beyond multiplier decay, so this can outpace input rate.
const livePushInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The browser client is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLive streams session snapshots over a websocket until the session
// ends or the client disconnects. Read-only: a spectator cannot drop.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.host.Snapshot(id); err != nil {
		s.writeError(w, r, http.StatusNotFound, ErrTypeNotFound, "session not found", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	for range ticker.C {
		snap, err := s.host.Snapshot(id)
		if err != nil {
			// Session finalized; tell the client and stop.
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(SnapshotResponse{Snapshot: snap}); err != nil {
			return
		}
		if snap.GameOver {
			return
		}
	}
}

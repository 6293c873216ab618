package api

import (
	"net/http"
	"time"

	"modwatch/internal/logging"
	"modwatch/internal/resolver"

	"github.com/gorilla/websocket"
)

const writeDeadline = 10 * time.Second

// SnapshotStreamHandler pushes a registry snapshot to the client on
// connect and again on every state change.
type SnapshotStreamHandler struct {
	Resolver  *resolver.Resolver
	Logger    *logging.Logger
	AuthToken string
}

func (h *SnapshotStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !validateToken(r, h.AuthToken) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if h.Resolver == nil {
		http.Error(w, "resolver unavailable", http.StatusInternalServerError)
		return
	}

	snapshots, cancel := h.Resolver.Subscribe()
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", map[string]string{
				"error": err.Error(),
			})
		}
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		// Current state first so a late-joining client renders
		// immediately.
		if !writeSnapshot(conn, h.Resolver.Snapshot()) {
			return
		}
		for {
			select {
			case snapshot, ok := <-snapshots:
				if !ok {
					return
				}
				if !writeSnapshot(conn, snapshot) {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Drain the read side to notice disconnects; inbound payloads are
	// ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snapshot resolver.Snapshot) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return false
	}
	return conn.WriteJSON(snapshot) == nil
}

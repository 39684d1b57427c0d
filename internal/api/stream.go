package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dhiryansd999-cell/runrealm/internal/auth"
	"github.com/dhiryansd999-cell/runrealm/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamRun upgrades the connection and pushes session snapshots until the
// client disconnects. Closing the socket cancels the observer subscription,
// so no state flows to a view that is gone.
func (h *Handler) streamRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)

	// Snapshots are serialized through a channel so concurrent machine
	// notifications never interleave writes on the connection.
	snapshots := make(chan session.Snapshot, 16)
	cancel := machine.Observe(func(snap session.Snapshot) {
		select {
		case snapshots <- snap:
		default: // slow consumer, drop intermediate snapshot
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer cancel()
		defer conn.Close()
		for {
			select {
			case snap := <-snapshots:
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
}

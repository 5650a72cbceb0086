package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback unless HOST overrides it (infra.Config),
	// so cross-origin pages cannot reach the listener in the default setup.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans worker events out to every connected websocket client.
type hub struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{logger: logger, clients: map[*websocket.Conn]bool{}}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// broadcast sends one event to every client; clients that fail to accept the
// write are dropped.
func (h *hub) broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode event failed")
		return
	}

	h.mu.Lock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}

// Events upgrades the connection and streams worker events until the client
// goes away.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	a.hub.add(conn)

	// Reads only surface disconnects; clients do not send messages.
	go func() {
		defer a.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

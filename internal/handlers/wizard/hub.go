package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/upgrade"

	gorillawebsocket "github.com/gorilla/websocket"
)

const (
	websocketReadBufferSize  = 1024
	websocketWriteBufferSize = 4096
	sendQueueSize            = 8
	writeWait                = 10 * time.Second
	pongWait                 = 60 * time.Second
	pingPeriod               = pongWait * 9 / 10
	maxInboundMessage        = 512
)

// Hub fans wizard states out to WebSocket watchers. It is registered as an
// upgrade.StateListener.
type Hub struct {
	logger   interfaces.Logger
	upgrader gorillawebsocket.Upgrader

	mu      sync.Mutex
	clients map[*watcher]struct{}
	last    []byte
}

type watcher struct {
	conn *gorillawebsocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger interfaces.Logger) *Hub {
	return &Hub{
		logger: logger.Named("wizard-hub"),
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  websocketReadBufferSize,
			WriteBufferSize: websocketWriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*watcher]struct{}),
	}
}

// Watchers returns the number of connected watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// StateChanged queues state for every watcher. Watchers whose queue is full
// are disconnected.
func (h *Hub) StateChanged(_ context.Context, state upgrade.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Errorf("Failed to encode wizard state: %v", err)

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = payload

	for w := range h.clients {
		select {
		case w.send <- payload:
		default:
			h.logger.Warn("Dropping slow wizard watcher", "remote", w.conn.RemoteAddr().String())
			h.removeLocked(w)
		}
	}
}

// ServeWS upgrades the request and streams states until the client leaves.
// initial is sent first when no state has been broadcast yet.
func (h *Hub) ServeWS(writer http.ResponseWriter, request *http.Request, initial upgrade.State) error {
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	w := &watcher{conn: conn, send: make(chan []byte, sendQueueSize)}

	h.mu.Lock()
	first := h.last
	if first == nil {
		first, err = json.Marshal(initial)
		if err != nil {
			h.mu.Unlock()
			_ = conn.Close()

			return fmt.Errorf("failed to encode wizard state: %w", err)
		}
	}

	w.send <- first
	h.clients[w] = struct{}{}
	h.mu.Unlock()

	h.logger.Debugf("Wizard watcher connected from %s", conn.RemoteAddr())

	go h.writePump(w)
	h.readPump(w)

	return nil
}

// readPump discards inbound messages and notices when the client goes away.
func (h *Hub) readPump(w *watcher) {
	defer h.remove(w)

	w.conn.SetReadLimit(maxInboundMessage)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := w.conn.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				h.logger.Debugf("Wizard watcher read error: %v", err)
			}

			return
		}
	}
}

func (h *Hub) writePump(w *watcher) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = w.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = w.conn.WriteMessage(gorillawebsocket.CloseMessage, []byte{})

				return
			}

			err := w.conn.WriteMessage(gorillawebsocket.TextMessage, payload)
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))

			err := w.conn.WriteMessage(gorillawebsocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(w)
}

func (h *Hub) removeLocked(w *watcher) {
	if _, ok := h.clients[w]; !ok {
		return
	}

	delete(h.clients, w)
	close(w.send)
}

// Close disconnects every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.clients {
		h.removeLocked(w)
	}
}

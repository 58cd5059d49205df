// Package events delivers build notifications to connected UI clients over
// websocket. Delivery is fire-and-forget: a slow or broken client is dropped,
// never allowed to stall a build.
package events

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clipsmith/clipsmith-agent/internal/clips"
)

const (
	writeTimeout = 5 * time.Second

	EventClipProgress = "clip_progress"
	EventClipResult   = "clip_result"
)

// Message is the envelope every notification is wrapped in on the wire.
type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Hub fans build notifications out to every connected websocket client.
// It implements clips.ProgressSink.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// The API listens on localhost only; origin checks would only
			// reject the tray UI's file:// pages.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]*websocket.Conn),
	}
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the client goes away. Inbound messages are discarded; the socket is
// push-only.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	h.mu.Lock()
	h.clients[clientID] = conn
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", clientID)

	defer func() {
		h.remove(clientID)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// EmitProgress broadcasts a build progress notification.
func (h *Hub) EmitProgress(p clips.BuildProgress) {
	h.broadcast(Message{Type: EventClipProgress, Timestamp: time.Now().UnixMilli(), Data: p})
}

// EmitResult broadcasts a terminal build result.
func (h *Hub) EmitResult(r clips.BuildResult) {
	h.broadcast(Message{Type: EventClipResult, Timestamp: time.Now().UnixMilli(), Data: r})
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast writes under the hub lock: concurrent builds emit concurrently
// and the websocket library allows only one writer per connection. Writes
// are bounded by the deadline, so the lock is never held indefinitely.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("dropping websocket client", "client_id", id, "error", err)
			delete(h.clients, id)
			conn.Close()
		}
	}
}

func (h *Hub) remove(clientID string) {
	h.mu.Lock()
	delete(h.clients, clientID)
	h.mu.Unlock()
}

// LogSink is the fallback ProgressSink for headless runs with no UI
// listening.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) EmitProgress(p clips.BuildProgress) {
	s.Logger.Debug("build progress",
		"clip_id", p.ClipID, "progress", p.Progress, "stage", p.Stage)
}

func (s LogSink) EmitResult(r clips.BuildResult) {
	s.Logger.Info("build finished",
		"clip_id", r.ClipID, "success", r.Success, "output", r.OutputPath, "error", r.Error)
}

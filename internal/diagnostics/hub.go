// Package diagnostics exposes ambient, non-authoritative run progress over
// HTTP and WebSocket (spec §7): GET /progress for a snapshot, /ws/progress
// for a live broadcast feed. Nothing here is consulted for correctness.
package diagnostics

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/quantcore/lfq-engine/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks the latest RunDiagnostics snapshot per run and broadcasts
// updates to connected WebSocket clients.
type Hub struct {
	mu        sync.Mutex
	snapshots map[string]models.RunDiagnostics
	clients   map[*websocket.Conn]bool
	broadcast chan models.RunDiagnostics
}

// NewHub returns an idle Hub; call Run in its own goroutine to start
// broadcasting.
func NewHub() *Hub {
	return &Hub{
		snapshots: make(map[string]models.RunDiagnostics),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan models.RunDiagnostics, 256),
	}
}

// Run drains the broadcast channel, forwarding each update to every
// connected client. Intended to run for the lifetime of the process.
func (h *Hub) Run() {
	for d := range h.broadcast {
		h.mu.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteJSON(d); err != nil {
				log.Printf("diagnostics: websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

// Report records d as the latest snapshot for its run and queues it for
// broadcast. Wire this as an engine.ProgressFunc.
func (h *Hub) Report(d models.RunDiagnostics) {
	d.UpdatedAt = currentTime()
	h.mu.Lock()
	h.snapshots[d.RunID] = d
	h.mu.Unlock()

	select {
	case h.broadcast <- d:
	default:
		log.Printf("diagnostics: broadcast channel full, dropping update for run %s", d.RunID)
	}
}

// Snapshot returns every run's latest diagnostics, for the HTTP poll path.
func (h *Hub) Snapshot() []models.RunDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.RunDiagnostics, 0, len(h.snapshots))
	for _, d := range h.snapshots {
		out = append(out, d)
	}
	return out
}

// Subscribe upgrades the connection to a WebSocket and registers it for
// broadcasts until it disconnects.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("diagnostics: failed to upgrade websocket: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// currentTime is a seam for deterministic tests; production wiring leaves
// it at its default.
var currentTime = time.Now

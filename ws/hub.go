package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vnkhanh/audiodeck-backend/models"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub fans commit progress out to the sockets watching each job id.
type Hub struct {
	clients map[string]map[*websocket.Conn]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*websocket.Conn]*Client)}
}

// JobProgress is one message on a job socket.
type JobProgress struct {
	Type     string            `json:"type"`
	JobID    string            `json:"job_id"`
	Card     models.CardResult `json:"card"`
	Done     int               `json:"done"`
	Total    int               `json:"total"`
	Progress float64           `json:"progress"`
}

// Register attaches conn to jobID and starts its write pump.
func (h *Hub) Register(jobID string, conn *websocket.Conn) *Client {
	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.mu.Lock()
	if _, ok := h.clients[jobID]; !ok {
		h.clients[jobID] = make(map[*websocket.Conn]*Client)
	}
	h.clients[jobID][conn] = client
	h.mu.Unlock()

	go h.writePump(client)
	return client
}

// Unregister detaches conn; its write pump closes the socket.
func (h *Hub) Unregister(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[jobID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.clients, jobID)
		}
	}
}

// Broadcast queues data for every socket of jobID. Slow sockets drop messages.
func (h *Hub) Broadcast(jobID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[jobID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// CardProgress implements services.ProgressReporter.
func (h *Hub) CardProgress(jobID string, result models.CardResult, done, total int) {
	update := JobProgress{
		Type:  "card",
		JobID: jobID,
		Card:  result,
		Done:  done,
		Total: total,
	}
	if total > 0 {
		update.Progress = float64(done) / float64(total)
	}
	data, err := json.Marshal(update)
	if err != nil {
		log.Error().Err(err).Msg("marshal job progress")
		return
	}
	h.Broadcast(jobID, data)
}

// Stats reports open sockets per job, used by the health check.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := map[string]int{"jobs": len(h.clients)}
	conns := 0
	for _, clients := range h.clients {
		conns += len(clients)
	}
	stats["connections"] = conns
	return stats
}

func (h *Hub) writePump(client *Client) {
	defer func() {
		client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
		client.Conn.Close()
	}()
	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

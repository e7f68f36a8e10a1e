// internal/events/hub.go
// Live submission feed for admin dashboards. Connected clients are
// read-only; the hub fans each event out and drops clients whose send
// buffers are full rather than blocking the pipeline.

package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// SubmissionEvent is one accepted submission, pushed to dashboards
type SubmissionEvent struct {
	Type        string    `json:"type"`
	FormID      int64     `json:"form_id"`
	FormTitle   string    `json:"form_title"`
	UUID        string    `json:"uuid"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Hub maintains active dashboard connections
type Hub struct {
	clients    map[*Client]bool
	clientsMux sync.RWMutex

	broadcast  chan SubmissionEvent
	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan SubmissionEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *Hub) Run() {
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-h.ctx.Done():
			return
		}
	}
}

// Publish queues an event for broadcast. Never blocks: when the hub is
// saturated the event is dropped, dashboards are advisory.
func (h *Hub) Publish(event SubmissionEvent) {
	if event.Type == "" {
		event.Type = "submission"
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("events: broadcast buffer full, dropping event for form %d", event.FormID)
	}
}

func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.clients[client] = true
	log.Printf("events: dashboard connected. Total clients: %d", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if _, exists := h.clients[client]; exists {
		client.close()
		delete(h.clients, client)
		log.Printf("events: dashboard disconnected. Total clients: %d", len(h.clients))
	}
}

func (h *Hub) broadcastEvent(event SubmissionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal event: %v", err)
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop the event for this client
		}
	}
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
}

// internal/events/handlers.go

package events

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/formhive/formhive-backend/internal/common/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Access is gated by the admin token, not the origin
		return true
	},
}

type Handler struct {
	hub        *Hub
	adminToken string
}

func NewHandler(hub *Hub, adminToken string) *Handler {
	return &Handler{hub: hub, adminToken: adminToken}
}

// ServeWS upgrades a dashboard connection. Browsers cannot set headers on
// websocket requests, so the admin token rides in the query string.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		utils.ErrorResponse(w, "Admin API is disabled", http.StatusForbidden)
		return
	}

	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		utils.ErrorResponse(w, "Invalid admin token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.register <- client
	client.Start()
}

func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/api/v1/admin/events/ws", handler.ServeWS).Methods("GET")
}

package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"casaview/services/events"
)

const (
	eventWriteWait = 10 * time.Second
	eventPongWait  = 60 * time.Second
	eventPingEvery = (eventPongWait * 9) / 10
)

// EventsHandler streams application events to UI clients over a websocket.
type EventsHandler struct {
	events   *events.Service
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(eventsSvc *events.Service) *EventsHandler {
	return &EventsHandler{
		events: eventsSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes attaches the event stream endpoint.
func (h *EventsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/events", h.Events).Methods(http.MethodGet)
}

// Events upgrades the connection and forwards events until the client
// disconnects.
// GET /api/events (websocket)
func (h *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub, cancel := h.events.Subscribe()
	defer cancel()

	// Clients never send application data; the read loop only services
	// pongs and close frames.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

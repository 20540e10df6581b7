package handlers

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"casaview/internal/player"
	"casaview/internal/wsbuffer"
	"casaview/models"
	"casaview/services/cameras"
	"casaview/services/events"
)

// ViewHandler owns the websocket viewer endpoint. Each connection becomes
// one view with its own playback session; the viewer's decode buffer is
// driven remotely over the socket.
type ViewHandler struct {
	service *cameras.Service
	manager *player.Manager
	events  *events.Service

	upgrader websocket.Upgrader
}

// NewViewHandler creates a new view handler.
func NewViewHandler(service *cameras.Service, manager *player.Manager, eventsSvc *events.Service) *ViewHandler {
	return &ViewHandler{
		service: service,
		manager: manager,
		events:  eventsSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes attaches the viewer endpoint.
func (h *ViewHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/cameras/{cameraID}/view", h.View).Methods(http.MethodGet)
}

// View upgrades the connection and runs a playback session against the
// viewer until either side goes away.
// GET /api/cameras/{cameraID}/view (websocket)
func (h *ViewHandler) View(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["cameraID"]

	cam, desc, err := h.service.Descriptor(cameraID)
	switch {
	case errors.Is(err, cameras.ErrNotFound):
		jsonError(w, "Camera not found", http.StatusNotFound)
		return
	case errors.Is(err, cameras.ErrCameraDisabled):
		jsonError(w, "Camera is disabled", http.StatusServiceUnavailable)
		return
	case err != nil:
		jsonError(w, "Failed to resolve camera: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// MJPEG plays through the gateway's own stream endpoint. Upstream
	// addresses and credentials stay server side; the proxy attaches them.
	if desc.Kind == models.KindMJPEG {
		desc.URL = "/api/cameras/" + cam.ID + "/stream"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Printf("[view] upgrade failed camera=%s: %v", cameraID, err)
		return
	}
	defer conn.Close()

	viewID := uuid.NewString()
	host := wsbuffer.NewHost(conn, slog.With("component", "wsbuffer", "view_id", viewID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read pump outliving the session means the viewer is idle; the
	// pump dying means the viewer is gone and the session must stop.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := host.ReadPump(); err != nil {
			log.Printf("[view] connection lost view=%s camera=%s: %v", viewID, cameraID, err)
		}
		cancel()
	}()

	notify := func(change player.StateChange) {
		host.NotifyState(string(change.State), change.Reason)
		h.events.SessionState(cam.ID, viewID, string(change.State), change.Reason)
	}

	session := h.manager.Start(ctx, viewID, desc, host, notify)
	log.Printf("[view] session started view=%s camera=%s kind=%s session=%s", viewID, cameraID, desc.Kind, session.ID)

	// Hold the connection for as long as the viewer stays. A finished
	// session just leaves the viewer looking at its terminal state.
	<-pumpDone
	h.manager.StopView(viewID)

	log.Printf("[view] session finished view=%s camera=%s", viewID, cameraID)
}

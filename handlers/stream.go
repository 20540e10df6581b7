package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"casaview/internal/mjpeg"
	"casaview/models"
	"casaview/services/cameras"
)

// StreamHandler proxies MJPEG camera feeds to HTTP clients. Credentials
// stay on the gateway; clients never see the upstream URL.
type StreamHandler struct {
	service *cameras.Service
	client  *http.Client
}

// NewStreamHandler creates a stream handler with a default HTTP client
// when one is not provided. The client must not enforce an overall
// timeout, MJPEG responses never end on their own.
func NewStreamHandler(service *cameras.Service, client *http.Client) *StreamHandler {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 15 * time.Second,
			},
		}
	}
	return &StreamHandler{service: service, client: client}
}

// RegisterRoutes attaches the stream proxy endpoint.
func (h *StreamHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/cameras/{cameraID}/stream", h.Stream).Methods(http.MethodGet)
}

// Stream serves a camera's live MJPEG feed.
// GET /api/cameras/{cameraID}/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
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

	if cam.Type == models.StreamTypeWebRTC {
		jsonError(w, "WebRTC cameras are not supported yet", http.StatusNotImplemented)
		return
	}
	if desc.Kind != models.KindMJPEG {
		jsonError(w, "Camera is not an MJPEG stream; use the viewer endpoint", http.StatusConflict)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, desc.URL, nil)
	if err != nil {
		jsonError(w, "Invalid camera URL", http.StatusBadGateway)
		return
	}
	if cam.Username != "" {
		req.SetBasicAuth(cam.Username, cam.Password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("[stream] upstream connect failed camera=%s: %v", cameraID, err)
		jsonError(w, "Camera is unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[stream] upstream rejected camera=%s status=%s", cameraID, resp.Status)
		jsonError(w, "Camera returned "+resp.Status, http.StatusBadGateway)
		return
	}

	kind, body, err := mjpeg.DetectKind(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("[stream] unsupported upstream camera=%s: %v", cameraID, err)
		jsonError(w, "Camera stream format not supported", http.StatusBadGateway)
		return
	}

	switch kind {
	case mjpeg.KindMultipart:
		// Upstream already frames its parts; relay boundary and all.
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = mjpeg.ContentType
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		relay(w, body)
	case mjpeg.KindRawJPEG:
		w.Header().Set("Content-Type", mjpeg.ContentType)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if err := mjpeg.Reframe(r.Context(), w, body); err != nil && r.Context().Err() == nil {
			log.Printf("[stream] reframe ended camera=%s: %v", cameraID, err)
		}
	}
}

// relay copies the upstream stream to the client, flushing as data
// arrives. Either side disconnecting ends the copy.
func relay(w http.ResponseWriter, src io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

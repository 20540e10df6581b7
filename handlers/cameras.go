package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"casaview/models"
	"casaview/services/cameras"
)

// CamerasHandler exposes the camera directory API.
type CamerasHandler struct {
	service *cameras.Service
}

// NewCamerasHandler creates a new cameras handler.
func NewCamerasHandler(service *cameras.Service) *CamerasHandler {
	return &CamerasHandler{service: service}
}

// RegisterRoutes attaches the camera CRUD endpoints.
func (h *CamerasHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/cameras", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/cameras", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/cameras/{cameraID}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/cameras/{cameraID}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/cameras/{cameraID}", h.Delete).Methods(http.MethodDelete)
}

// List returns all configured cameras.
// GET /api/cameras
func (h *CamerasHandler) List(w http.ResponseWriter, r *http.Request) {
	cams, err := h.service.List()
	if err != nil {
		jsonError(w, "Failed to list cameras: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if cams == nil {
		cams = []models.Camera{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cameras": cams,
		"count":   len(cams),
	})
}

// Get returns a single camera.
// GET /api/cameras/{cameraID}
func (h *CamerasHandler) Get(w http.ResponseWriter, r *http.Request) {
	cam, err := h.service.Get(mux.Vars(r)["cameraID"])
	if err != nil {
		writeCameraError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// Create adds a camera to the directory.
// POST /api/cameras
func (h *CamerasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.AddCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cam, err := h.service.Add(req)
	if err != nil {
		writeCameraError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cam)
}

// Update applies partial changes to a camera.
// PUT /api/cameras/{cameraID}
func (h *CamerasHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cam, err := h.service.Update(mux.Vars(r)["cameraID"], req)
	if err != nil {
		writeCameraError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// Delete removes a camera.
// DELETE /api/cameras/{cameraID}
func (h *CamerasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(mux.Vars(r)["cameraID"]); err != nil {
		writeCameraError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeCameraError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cameras.ErrNotFound):
		jsonError(w, "Camera not found", http.StatusNotFound)
	case errors.Is(err, cameras.ErrDuplicateName):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, cameras.ErrInvalidCamera):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, "Camera operation failed: "+err.Error(), http.StatusInternalServerError)
	}
}

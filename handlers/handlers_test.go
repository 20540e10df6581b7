package handlers_test

import (
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"casaview/config"
	"casaview/internal/database"
	"casaview/models"
	"casaview/services/cameras"
)

// memStore keeps cameras in memory so handler tests stay off disk.
type memStore struct {
	cams map[string]models.Camera
}

func newMemStore() *memStore {
	return &memStore{cams: make(map[string]models.Camera)}
}

func (m *memStore) Insert(cam models.Camera) error {
	m.cams[cam.ID] = cam
	return nil
}

func (m *memStore) Get(id string) (models.Camera, error) {
	cam, ok := m.cams[id]
	if !ok {
		return models.Camera{}, database.ErrCameraNotFound
	}
	return cam, nil
}

func (m *memStore) List() ([]models.Camera, error) {
	out := make([]models.Camera, 0, len(m.cams))
	for _, cam := range m.cams {
		out = append(out, cam)
	}
	return out, nil
}

func (m *memStore) Update(cam models.Camera) error {
	if _, ok := m.cams[cam.ID]; !ok {
		return database.ErrCameraNotFound
	}
	m.cams[cam.ID] = cam
	return nil
}

func (m *memStore) Delete(id string) error {
	if _, ok := m.cams[id]; !ok {
		return database.ErrCameraNotFound
	}
	delete(m.cams, id)
	return nil
}

func newCameraService(t *testing.T) (*cameras.Service, *memStore) {
	t.Helper()
	cfg := config.NewManagerFs(afero.NewMemMapFs(), "settings.json")
	store := newMemStore()
	return cameras.NewService(cfg, store, nil), store
}

func newTestRouter() *mux.Router {
	return mux.NewRouter()
}

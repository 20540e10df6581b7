package cameras_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"casaview/config"
	"casaview/internal/database"
	"casaview/models"
	"casaview/services/cameras"
)

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

type recordingNotifier struct {
	added   []models.Camera
	updated []models.Camera
	removed []string
}

func (n *recordingNotifier) CameraAdded(cam models.Camera)   { n.added = append(n.added, cam) }
func (n *recordingNotifier) CameraUpdated(cam models.Camera) { n.updated = append(n.updated, cam) }
func (n *recordingNotifier) CameraRemoved(id string)         { n.removed = append(n.removed, id) }

func newTestService(t *testing.T) (*cameras.Service, *memStore, *recordingNotifier, *config.Manager) {
	t.Helper()
	cfg := config.NewManagerFs(afero.NewMemMapFs(), "settings.json")
	store := newMemStore()
	notify := &recordingNotifier{}
	return cameras.NewService(cfg, store, notify), store, notify, cfg
}

func TestAddStoresCameraAndNotifies(t *testing.T) {
	svc, store, notify, _ := newTestService(t)

	cam, err := svc.Add(models.AddCameraRequest{
		Name:       "  Front Door  ",
		StreamURL:  "http://cam.local/stream",
		StreamType: "mjpeg",
	})
	if err != nil {
		t.Fatalf("add returned error: %v", err)
	}

	if cam.ID == "" {
		t.Fatalf("expected generated camera id")
	}
	if cam.Name != "Front Door" {
		t.Fatalf("expected trimmed name, got %q", cam.Name)
	}
	if !cam.Enabled {
		t.Fatalf("expected new cameras to start enabled")
	}
	if _, ok := store.cams[cam.ID]; !ok {
		t.Fatalf("camera was not persisted")
	}
	if len(notify.added) != 1 {
		t.Fatalf("expected one added event, got %d", len(notify.added))
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  models.AddCameraRequest
	}{
		{
			name: "unknown stream type",
			req:  models.AddCameraRequest{Name: "Cam", StreamURL: "http://cam.local/s", StreamType: "hls"},
		},
		{
			name: "empty name",
			req:  models.AddCameraRequest{Name: "   ", StreamURL: "http://cam.local/s", StreamType: "mjpeg"},
		},
		{
			name: "missing url",
			req:  models.AddCameraRequest{Name: "Cam", StreamType: "mjpeg"},
		},
		{
			name: "mjpeg with rtsp url",
			req:  models.AddCameraRequest{Name: "Cam", StreamURL: "rtsp://cam.local/s", StreamType: "mjpeg"},
		},
		{
			name: "rtsp with http url",
			req:  models.AddCameraRequest{Name: "Cam", StreamURL: "http://cam.local/s", StreamType: "rtsp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(t)
			if _, err := svc.Add(tt.req); !errors.Is(err, cameras.ErrInvalidCamera) {
				t.Fatalf("expected ErrInvalidCamera, got %v", err)
			}
		})
	}
}

func TestAddRejectsTransliteratedDuplicateNames(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.Add(models.AddCameraRequest{
		Name: "Küche", StreamURL: "http://cam.local/a", StreamType: "mjpeg",
	}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.Add(models.AddCameraRequest{
		Name: "kuche", StreamURL: "http://cam.local/b", StreamType: "mjpeg",
	})
	if !errors.Is(err, cameras.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	svc, _, notify, _ := newTestService(t)

	cam, err := svc.Add(models.AddCameraRequest{
		Name: "Garage", StreamURL: "http://cam.local/garage", StreamType: "mjpeg",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	enabled := false
	updated, err := svc.Update(cam.ID, models.UpdateCameraRequest{Enabled: &enabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Enabled {
		t.Fatalf("expected camera to be disabled")
	}
	if updated.Name != "Garage" || updated.StreamURL != cam.StreamURL {
		t.Fatalf("unrelated fields changed: %+v", updated)
	}
	if len(notify.updated) != 1 {
		t.Fatalf("expected one updated event, got %d", len(notify.updated))
	}
}

func TestUpdateUnknownCamera(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	name := "Ghost"
	if _, err := svc.Update("no-such-id", models.UpdateCameraRequest{Name: &name}); !errors.Is(err, cameras.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveNotifies(t *testing.T) {
	svc, store, notify, _ := newTestService(t)

	cam, err := svc.Add(models.AddCameraRequest{
		Name: "Porch", StreamURL: "http://cam.local/porch", StreamType: "mjpeg",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Remove(cam.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := store.cams[cam.ID]; ok {
		t.Fatalf("camera still present after remove")
	}
	if len(notify.removed) != 1 || notify.removed[0] != cam.ID {
		t.Fatalf("expected removed event for %s, got %v", cam.ID, notify.removed)
	}
}

func TestDescriptorRefusesDisabledCamera(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	cam, err := svc.Add(models.AddCameraRequest{
		Name: "Backyard", StreamURL: "http://cam.local/by", StreamType: "mjpeg",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	stored := store.cams[cam.ID]
	stored.Enabled = false
	store.cams[cam.ID] = stored

	if _, _, err := svc.Descriptor(cam.ID); !errors.Is(err, cameras.ErrCameraDisabled) {
		t.Fatalf("expected ErrCameraDisabled, got %v", err)
	}
}

func TestDescriptorRemuxesRTSP(t *testing.T) {
	svc, _, _, cfg := newTestService(t)

	settings := config.DefaultSettings()
	settings.Player.RemuxTemplate = "http://remux.local/stream.mp4?src={url}"
	if err := cfg.Save(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	cam, err := svc.Add(models.AddCameraRequest{
		Name: "Driveway", StreamURL: "rtsp://cam.local:554/main", StreamType: "rtsp",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, desc, err := svc.Descriptor(cam.ID)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if desc.Kind != models.KindSegmentedVideo {
		t.Fatalf("expected segmented video, got %s", desc.Kind)
	}
	if !strings.HasPrefix(desc.URL, "http://remux.local/stream.mp4?src=") {
		t.Fatalf("expected remuxed URL, got %q", desc.URL)
	}
	if strings.Contains(desc.URL, "rtsp://cam.local") {
		t.Fatalf("camera URL should be escaped inside the remux URL: %q", desc.URL)
	}
}

func TestDescriptorRTSPWithoutRemuxerIsUnsupported(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	cam, err := svc.Add(models.AddCameraRequest{
		Name: "Side Gate", StreamURL: "rtsp://cam.local:554/side", StreamType: "rtsp",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, desc, err := svc.Descriptor(cam.ID)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if desc.Kind != models.KindUnsupported {
		t.Fatalf("expected unsupported without a remuxer, got %s", desc.Kind)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Front Door", "front-door"},
		{"Küche", "kuche"},
		{"  Salón -- 2  ", "salon-2"},
		{"прихожая", "prikhozhaia"},
	}
	for _, tt := range tests {
		if got := cameras.Slug(tt.in); got != tt.want {
			t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

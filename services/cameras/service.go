package cameras

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"

	"casaview/config"
	"casaview/internal/database"
	"casaview/models"
)

type cameraStore interface {
	Insert(cam models.Camera) error
	Get(id string) (models.Camera, error)
	List() ([]models.Camera, error)
	Update(cam models.Camera) error
	Delete(id string) error
}

var _ cameraStore = (*database.CameraRepository)(nil)

// notifier receives directory change events. The events service implements
// this; a nil notifier disables broadcasting.
type notifier interface {
	CameraAdded(cam models.Camera)
	CameraUpdated(cam models.Camera)
	CameraRemoved(id string)
}

var (
	// ErrNotFound mirrors the store's not-found condition for callers that
	// should not import the database package.
	ErrNotFound = database.ErrCameraNotFound

	ErrInvalidCamera  = errors.New("invalid camera")
	ErrDuplicateName  = errors.New("a camera with that name already exists")
	ErrCameraDisabled = errors.New("camera is disabled")
)

// Service manages the camera directory.
type Service struct {
	cfg    *config.Manager
	store  cameraStore
	notify notifier
}

// NewService returns a camera directory service. notify may be nil.
func NewService(cfg *config.Manager, store cameraStore, notify notifier) *Service {
	return &Service{cfg: cfg, store: store, notify: notify}
}

// Add validates and stores a new camera.
func (s *Service) Add(req models.AddCameraRequest) (models.Camera, error) {
	streamType, err := models.ParseStreamType(req.StreamType)
	if err != nil {
		return models.Camera{}, fmt.Errorf("%w: %v", ErrInvalidCamera, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Camera{}, fmt.Errorf("%w: name is required", ErrInvalidCamera)
	}
	if err := validateStreamURL(req.StreamURL, streamType); err != nil {
		return models.Camera{}, fmt.Errorf("%w: %v", ErrInvalidCamera, err)
	}
	if err := s.checkNameCollision(name, ""); err != nil {
		return models.Camera{}, err
	}

	now := time.Now().UTC()
	cam := models.Camera{
		ID:        uuid.NewString(),
		Name:      name,
		StreamURL: strings.TrimSpace(req.StreamURL),
		Type:      streamType,
		Enabled:   true,
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(cam); err != nil {
		return models.Camera{}, err
	}

	log.Printf("[cameras] added id=%s name=%q type=%s", cam.ID, cam.Name, cam.Type)
	if s.notify != nil {
		s.notify.CameraAdded(cam)
	}
	return cam, nil
}

// Get returns a single camera.
func (s *Service) Get(id string) (models.Camera, error) {
	return s.store.Get(id)
}

// List returns all cameras.
func (s *Service) List() ([]models.Camera, error) {
	return s.store.List()
}

// Update applies the non-nil fields of req to an existing camera.
func (s *Service) Update(id string, req models.UpdateCameraRequest) (models.Camera, error) {
	cam, err := s.store.Get(id)
	if err != nil {
		return models.Camera{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.Camera{}, fmt.Errorf("%w: name is required", ErrInvalidCamera)
		}
		if err := s.checkNameCollision(name, cam.ID); err != nil {
			return models.Camera{}, err
		}
		cam.Name = name
	}
	if req.StreamType != nil {
		streamType, err := models.ParseStreamType(*req.StreamType)
		if err != nil {
			return models.Camera{}, fmt.Errorf("%w: %v", ErrInvalidCamera, err)
		}
		cam.Type = streamType
	}
	if req.StreamURL != nil {
		cam.StreamURL = strings.TrimSpace(*req.StreamURL)
	}
	if req.StreamURL != nil || req.StreamType != nil {
		if err := validateStreamURL(cam.StreamURL, cam.Type); err != nil {
			return models.Camera{}, fmt.Errorf("%w: %v", ErrInvalidCamera, err)
		}
	}
	if req.Username != nil {
		cam.Username = strings.TrimSpace(*req.Username)
	}
	if req.Password != nil {
		cam.Password = *req.Password
	}
	if req.Enabled != nil {
		cam.Enabled = *req.Enabled
	}

	if err := s.store.Update(cam); err != nil {
		return models.Camera{}, err
	}
	cam, err = s.store.Get(id)
	if err != nil {
		return models.Camera{}, err
	}

	log.Printf("[cameras] updated id=%s name=%q enabled=%t", cam.ID, cam.Name, cam.Enabled)
	if s.notify != nil {
		s.notify.CameraUpdated(cam)
	}
	return cam, nil
}

// Remove deletes a camera from the directory.
func (s *Service) Remove(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	log.Printf("[cameras] removed id=%s", id)
	if s.notify != nil {
		s.notify.CameraRemoved(id)
	}
	return nil
}

// Descriptor resolves a camera into its playback descriptor. Disabled
// cameras are not streamable.
func (s *Service) Descriptor(id string) (models.Camera, models.StreamDescriptor, error) {
	cam, err := s.store.Get(id)
	if err != nil {
		return models.Camera{}, models.StreamDescriptor{}, err
	}
	if !cam.Enabled {
		return cam, models.StreamDescriptor{}, ErrCameraDisabled
	}

	settings, err := s.cfg.Load()
	if err != nil {
		log.Printf("[cameras] warning: failed to load config, rtsp remuxing unavailable: %v", err)
		settings = config.DefaultSettings()
	}
	return cam, models.DescriptorFor(cam, settings.Player.RemuxTemplate), nil
}

func (s *Service) checkNameCollision(name, selfID string) error {
	existing, err := s.store.List()
	if err != nil {
		return err
	}
	slug := Slug(name)
	for _, other := range existing {
		if other.ID != selfID && Slug(other.Name) == slug {
			return fmt.Errorf("%w: %q", ErrDuplicateName, other.Name)
		}
	}
	return nil
}

// Slug normalizes a camera name for collision checks and URLs. Accented
// and non-Latin names are transliterated first so "Küche" and "Kuche"
// refer to the same camera.
func Slug(name string) string {
	ascii := unidecode.Unidecode(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func validateStreamURL(raw string, streamType models.StreamType) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("stream URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("stream URL: %v", err)
	}
	if u.Host == "" {
		return errors.New("stream URL must include a host")
	}

	scheme := strings.ToLower(u.Scheme)
	switch streamType {
	case models.StreamTypeMJPEG:
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("mjpeg cameras need an http(s) URL, got %q", scheme)
		}
	case models.StreamTypeRTSP:
		if scheme != "rtsp" && scheme != "rtsps" {
			return fmt.Errorf("rtsp cameras need an rtsp URL, got %q", scheme)
		}
	case models.StreamTypeWebRTC:
		if scheme != "http" && scheme != "https" && scheme != "ws" && scheme != "wss" {
			return fmt.Errorf("webrtc cameras need an http(s) or ws(s) URL, got %q", scheme)
		}
	}
	return nil
}

// Package events fans application events out to subscribed clients. The
// camera directory and playback sessions publish here; the websocket
// event endpoint subscribes on behalf of each connected UI.
package events

import (
	"log/slog"
	"sync"
	"time"

	"casaview/models"
)

// Type names an event on the wire.
type Type string

const (
	TypeCameraAdded   Type = "camera.added"
	TypeCameraUpdated Type = "camera.updated"
	TypeCameraRemoved Type = "camera.removed"
	TypeSessionState  Type = "session.state"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// SessionStatePayload describes a playback session transition.
type SessionStatePayload struct {
	CameraID string `json:"camera_id"`
	ViewID   string `json:"view_id"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
}

// CameraRemovedPayload carries just the id of a deleted camera.
type CameraRemovedPayload struct {
	ID string `json:"id"`
}

const subscriberBuffer = 32

// Service is an in-process publish/subscribe hub. Delivery is best
// effort: a subscriber that cannot keep up has events dropped rather
// than stalling the publisher.
type Service struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewService(logger *slog.Logger) *Service {
	return &Service{
		log:  logger,
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call twice.
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber.
func (s *Service) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.log.Warn("events.subscriber.lagging", "type", event.Type)
		}
	}
}

// SubscriberCount reports how many clients are currently attached.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// CameraAdded publishes a camera creation.
func (s *Service) CameraAdded(cam models.Camera) {
	s.Publish(Event{Type: TypeCameraAdded, Payload: cam})
}

// CameraUpdated publishes a camera change.
func (s *Service) CameraUpdated(cam models.Camera) {
	s.Publish(Event{Type: TypeCameraUpdated, Payload: cam})
}

// CameraRemoved publishes a camera deletion.
func (s *Service) CameraRemoved(id string) {
	s.Publish(Event{Type: TypeCameraRemoved, Payload: CameraRemovedPayload{ID: id}})
}

// SessionState publishes a playback session transition.
func (s *Service) SessionState(cameraID, viewID, state, reason string) {
	s.Publish(Event{Type: TypeSessionState, Payload: SessionStatePayload{
		CameraID: cameraID,
		ViewID:   viewID,
		State:    state,
		Reason:   reason,
	}})
}

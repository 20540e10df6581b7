package player

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc"

	"casaview/models"
)

// Manager owns at most one live session per view. Starting a descriptor
// for a view fully tears down that view's previous session first, so two
// sessions never feed one display surface.
type Manager struct {
	client *http.Client
	cfg    Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a session manager. A nil client falls back to
// http.DefaultClient.
func NewManager(client *http.Client, cfg Config) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		client:   client,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Start runs a new session for the view, replacing any previous one. The
// returned session is already running; callers observe it through the
// notify callback and Done.
func (m *Manager) Start(ctx context.Context, viewID string, desc models.StreamDescriptor, host Host, notify func(StateChange)) *Session {
	m.StopView(viewID)

	session := NewSession(desc, host, m.client, m.cfg, notify)

	m.mu.Lock()
	m.sessions[viewID] = session
	m.mu.Unlock()

	go func() {
		last, err := m.runWithReconnect(ctx, session, viewID, desc, host, notify)
		if err != nil {
			slog.Warn("player.manager.session_ended",
				"view_id", viewID,
				"session_id", last.ID,
				"error", err,
			)
		}
		m.mu.Lock()
		if m.sessions[viewID] == last {
			delete(m.sessions, viewID)
		}
		m.mu.Unlock()
	}()

	return session
}

// runWithReconnect runs the session and, when configured, rebuilds a fresh
// session after a connection failure. Reconnection never reuses pipeline
// state: fragmented formats cannot resume negotiation or buffer contents
// across a broken connection, so each attempt is a brand new session.
func (m *Manager) runWithReconnect(ctx context.Context, first *Session, viewID string, desc models.StreamDescriptor, host Host, notify func(StateChange)) (*Session, error) {
	err := first.Run(ctx)
	if err == nil || m.cfg.ReconnectAttempts <= 0 || !errors.Is(err, ErrSourceFailed) {
		return first, err
	}

	prev := first
	retryErr := retry.Do(
		func() error {
			session := NewSession(desc, host, m.client, m.cfg, notify)

			// Swap in the fresh session only while this view still owns
			// the chain; a StopView or replacement aborts reconnection.
			m.mu.Lock()
			current, live := m.sessions[viewID]
			if !live || current != prev {
				m.mu.Unlock()
				return nil
			}
			m.sessions[viewID] = session
			prev = session
			m.mu.Unlock()

			runErr := session.Run(ctx)
			if runErr != nil && errors.Is(runErr, ErrSourceFailed) {
				return runErr
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(m.cfg.ReconnectAttempts)),
		retry.Delay(m.cfg.ReconnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return prev, retryErr
}

// StopView tears down the view's session, if any, and waits for it.
func (m *Manager) StopView(viewID string) {
	m.mu.Lock()
	session := m.sessions[viewID]
	delete(m.sessions, viewID)
	m.mu.Unlock()

	if session != nil {
		session.Stop()
	}
}

// Session returns the live session for a view, if any.
func (m *Manager) Session(viewID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[viewID]
	return session, ok
}

// StopAll tears down every live session in parallel and waits for all of
// them. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg conc.WaitGroup
	for _, session := range sessions {
		session := session
		wg.Go(session.Stop)
	}
	wg.Wait()
}

package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"casaview/models"
)

// SessionState is the observable state a session exposes for UI binding.
type SessionState string

const (
	StateConnecting  SessionState = "connecting"
	StatePlaying     SessionState = "playing"
	StateStalled     SessionState = "stalled"
	StateEnded       SessionState = "ended"
	StateFailed      SessionState = "failed"
	StateUnsupported SessionState = "unsupported_format"
)

// StateChange pairs a session state with an optional human-readable reason.
type StateChange struct {
	State  SessionState `json:"state"`
	Reason string       `json:"reason,omitempty"`
}

// Session runs one stream descriptor against one host. Descriptors are
// immutable for the session's lifetime; switching streams means tearing
// this session down and building a new one.
type Session struct {
	ID   string
	desc models.StreamDescriptor

	host   Host
	client *http.Client
	cfg    Config
	notify func(StateChange)

	cancel   context.CancelFunc
	wg       conc.WaitGroup
	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	stopped bool
	last    StateChange
}

// NewSession builds a session in its created state; Run starts it.
func NewSession(desc models.StreamDescriptor, host Host, client *http.Client, cfg Config, notify func(StateChange)) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	if notify == nil {
		notify = func(StateChange) {}
	}
	return &Session{
		ID:     uuid.NewString(),
		desc:   desc,
		host:   host,
		client: client,
		cfg:    cfg.withDefaults(),
		notify: notify,
		done:   make(chan struct{}),
	}
}

// Descriptor returns the immutable stream descriptor.
func (s *Session) Descriptor() models.StreamDescriptor {
	return s.desc
}

// State returns the most recently emitted state change.
func (s *Session) State() StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Done is closed once the session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) emit(state SessionState, reason string) {
	change := StateChange{State: state, Reason: reason}
	s.mu.Lock()
	if s.last == change {
		s.mu.Unlock()
		return
	}
	s.last = change
	s.mu.Unlock()

	slog.Info("player.session.state",
		"session_id", s.ID,
		"state", string(state),
		"reason", reason,
	)
	s.notify(change)
}

// Run drives the session to a terminal state. It blocks until playback
// ends, fails, or Stop is called, and returns the terminal error if any.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		// Stop raced ahead of Run; honor it.
		cancel()
	}
	defer cancel()
	defer close(s.done)

	switch s.desc.Kind {
	case models.KindSegmentedVideo:
		return s.runSegmented(ctx)
	case models.KindMJPEG:
		return s.runMJPEG(ctx)
	default:
		// Terminal from the start; no network activity of any kind.
		s.emit(StateUnsupported, "stream kind not supported")
		return nil
	}
}

// runMJPEG bypasses the whole pipeline: each frame is a complete image, so
// the surface is bound straight to the URL and failure is a single
// loaded/errored signal.
func (s *Session) runMJPEG(ctx context.Context) error {
	s.emit(StateConnecting, "")
	defer s.host.Release()

	if err := s.host.BindStreamURL(ctx, s.desc.URL); err != nil {
		s.emit(StateFailed, "stream bind failed")
		return err
	}
	s.emit(StatePlaying, "")

	<-ctx.Done()
	s.emit(StateEnded, "")
	return nil
}

func (s *Session) runSegmented(ctx context.Context) error {
	s.emit(StateConnecting, "")
	defer s.host.Release()

	queue := newSegmentQueue()
	defer queue.Close()

	feeder := NewFeeder(s.host, queue, s.cfg, func(event FeederEvent) {
		switch event {
		case EventSegmentFed:
			if last := s.State().State; last == StateConnecting || last == StateStalled {
				s.emit(StatePlaying, "")
			}
		case EventSegmentDropped:
			s.emit(StateStalled, "segment dropped during capacity recovery")
		}
	})
	defer feeder.Close()

	if err := feeder.Open(ctx); err != nil {
		if errors.Is(err, ErrNoSupportedCodec) {
			s.emit(StateUnsupported, "no supported codec")
		} else {
			s.emit(StateFailed, "decode buffer setup failed")
		}
		return err
	}

	source, err := OpenSource(ctx, s.client, s.desc.URL, s.cfg.ChunkBytes)
	if err != nil {
		s.emit(StateFailed, "stream connection failed")
		return err
	}
	defer source.Close()

	var pumpErr error
	s.wg.Go(func() {
		pumpErr = s.pump(ctx, source, queue)
	})

	feedErr := feeder.Run(ctx)

	// The feeder decided the outcome; make sure the pump unwinds too.
	source.Close()
	s.wg.Wait()

	switch {
	case ctx.Err() != nil:
		s.emit(StateEnded, "")
		return nil
	case feedErr != nil:
		s.emit(StateFailed, "decode error")
		return feedErr
	case pumpErr != nil:
		s.emit(StateFailed, "stream connection lost")
		return pumpErr
	default:
		s.emit(StateEnded, "")
		return nil
	}
}

// pump moves chunks from the source into the queue until the stream ends
// or fails. On clean end it finishes the queue so buffered segments still
// drain; on failure it closes the queue, discarding them.
func (s *Session) pump(ctx context.Context, source *ChunkSource, queue *segmentQueue) error {
	for {
		chunk, err := source.Next()
		if err == nil {
			queue.Push(chunk)
			continue
		}
		if err == io.EOF {
			queue.Finish()
			return nil
		}
		if ctx.Err() != nil {
			// Teardown closed the connection under us.
			queue.Close()
			return nil
		}
		queue.Close()
		return err
	}
}

// Stop tears the session down: it unblocks any pending network pull,
// closes the decode buffer, and releases the surface binding. Idempotent;
// it blocks until teardown completes so a successor session for the same
// view can start safely. Stop must not be called unless Run has been
// started.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	<-s.done
}

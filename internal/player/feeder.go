package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FeederState is the feeder's explicit tagged state. One value, one owner;
// every transition goes through setState. No guard booleans.
type FeederState string

const (
	// FeederOpen: buffer not yet negotiated.
	FeederOpen FeederState = "open"
	// FeederIdle: no buffer operation in flight, safe to submit.
	FeederIdle FeederState = "idle"
	// FeederBusy: exactly one append or trim in flight.
	FeederBusy FeederState = "busy"
	// FeederErrored: terminal, session fails.
	FeederErrored FeederState = "errored"
	// FeederClosed: absorbing teardown state.
	FeederClosed FeederState = "closed"
)

// FeederEvent notifies the owning session of feed progress.
type FeederEvent int

const (
	// EventSegmentFed fires after every successful submission.
	EventSegmentFed FeederEvent = iota
	// EventSegmentDropped fires when a segment is abandoned after failed
	// quota recovery; playback continues with a visible stutter.
	EventSegmentDropped
)

// errFeederClosed signals a cooperative shutdown path inside the feeder.
var errFeederClosed = errors.New("feeder closed")

// Feeder owns the decode buffer's append cycle. It is the only component
// that mutates buffer state: it submits queued segments one at a time,
// evicts already-played data before each submission, and contains
// per-segment capacity faults so that a single bad segment never stalls
// the session.
type Feeder struct {
	host   Host
	queue  *segmentQueue
	cfg    Config
	notify func(FeederEvent)
	buf    DecodeBuffer
	codec  string
	mu     sync.Mutex
	state  FeederState
}

// NewFeeder builds a feeder in the Open state. Open must succeed before Run.
func NewFeeder(host Host, queue *segmentQueue, cfg Config, notify func(FeederEvent)) *Feeder {
	if notify == nil {
		notify = func(FeederEvent) {}
	}
	return &Feeder{
		host:   host,
		queue:  queue,
		cfg:    cfg.withDefaults(),
		notify: notify,
		state:  FeederOpen,
	}
}

// State reports the current feeder state.
func (f *Feeder) State() FeederState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Codec returns the negotiated codec after a successful Open.
func (f *Feeder) Codec() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codec
}

func (f *Feeder) setState(next FeederState) {
	f.mu.Lock()
	if f.state == FeederClosed {
		// Closed is absorbing.
		f.mu.Unlock()
		return
	}
	f.state = next
	f.mu.Unlock()
}

// Open negotiates the codec and creates the decode buffer, moving the
// feeder from Open to Idle. A negotiation miss is terminal and leaves the
// feeder Errored; the caller must not start any network pull in that case.
func (f *Feeder) Open(ctx context.Context) error {
	if state := f.State(); state != FeederOpen {
		return fmt.Errorf("feeder open in state %q", state)
	}

	codec, err := Negotiate(ctx, f.host, f.cfg.Candidates)
	if err != nil {
		f.setState(FeederErrored)
		return err
	}

	buf, err := f.host.CreateBuffer(ctx, codec)
	if err != nil {
		f.setState(FeederErrored)
		return fmt.Errorf("create decode buffer: %w", err)
	}

	f.mu.Lock()
	f.buf = buf
	f.codec = codec
	f.mu.Unlock()
	f.setState(FeederIdle)

	slog.Debug("player.feeder.negotiated", "codec", codec)
	return nil
}

// Run drains the queue until the producer finishes, the context is
// cancelled, or the buffer reports an unrecoverable fault. It returns nil
// on clean drain or teardown and the terminal error otherwise.
func (f *Feeder) Run(ctx context.Context) error {
	for {
		segment, err := f.queue.Wait(ctx)
		if err != nil {
			switch {
			case errors.Is(err, errQueueDone):
				return nil
			case errors.Is(err, errQueueClosed), errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				f.setState(FeederClosed)
				return nil
			default:
				f.setState(FeederErrored)
				return err
			}
		}

		if err := f.feedOne(ctx, segment); err != nil {
			if errors.Is(err, errFeederClosed) {
				return nil
			}
			f.setState(FeederErrored)
			return err
		}
	}
}

// Close tears the feeder down from any state and closes the decode buffer.
// Idempotent; pending queue content is discarded by the queue's own Close.
func (f *Feeder) Close() {
	f.mu.Lock()
	alreadyClosed := f.state == FeederClosed
	f.state = FeederClosed
	buf := f.buf
	f.mu.Unlock()

	if alreadyClosed {
		return
	}
	if buf != nil {
		if err := buf.Close(); err != nil {
			slog.Debug("player.feeder.buffer_close_error", "error", err)
		}
	}
}

// feedOne pushes a single segment through the full cycle: routine eviction,
// submission, and bounded capacity recovery. Non-capacity submission faults
// are returned to Run and terminate the session.
func (f *Feeder) feedOne(ctx context.Context, segment []byte) error {
	if err := f.maybeEvict(ctx); err != nil {
		return err
	}

	err := f.submit(ctx, segment)
	if err == nil {
		f.finishSegment()
		return nil
	}
	if !errors.Is(err, ErrBufferFull) {
		return err
	}

	// Capacity rejection despite routine eviction: one aggressive trim,
	// then exactly one retry of the same segment.
	trimErr := f.aggressiveTrim(ctx)
	if trimErr == nil {
		err = f.submit(ctx, segment)
		if err == nil {
			f.finishSegment()
			return nil
		}
		if !errors.Is(err, ErrBufferFull) {
			return err
		}
	} else if !errors.Is(trimErr, ErrBufferFull) {
		return trimErr
	}

	// Recovery could not free enough room. Drop the segment and carry on:
	// a stutter beats a dead session.
	f.queue.Pop()
	f.notify(EventSegmentDropped)
	slog.Error("player.feeder.segment_dropped",
		"segment_bytes", len(segment),
		"queued", f.queue.Len(),
	)
	return nil
}

// finishSegment removes the submitted segment and reports progress.
func (f *Feeder) finishSegment() {
	f.queue.Pop()
	f.notify(EventSegmentFed)
}

// submit performs one append under Busy, waiting for the buffer's
// completion signal. The returned error is nil, ErrBufferFull, or an
// unrecoverable decode fault.
func (f *Feeder) submit(ctx context.Context, segment []byte) error {
	f.setState(FeederBusy)
	defer f.setState(FeederIdle)

	if err := f.buf.Append(segment); err != nil {
		return err
	}
	return f.awaitBuffer(ctx)
}

// maybeEvict trims already-played data when the margin behind the playback
// position exceeds the configured threshold, keeping a rewind window. Runs
// before every submission so steady-state memory stays bounded; a live feed
// has no natural end.
func (f *Feeder) maybeEvict(ctx context.Context) error {
	rng, ok := f.buf.Buffered()
	if !ok {
		return nil
	}

	position := f.host.Position()
	if position-rng.Start <= f.cfg.EvictAfter {
		return nil
	}

	target := position - f.cfg.RewindMargin
	if target <= rng.Start {
		return nil
	}

	slog.Debug("player.feeder.evict",
		"buffered_start", rng.Start,
		"buffered_end", rng.End,
		"position", position,
		"trim_to", target,
	)
	return f.trim(ctx, rng.Start, target)
}

// aggressiveTrim is the quota-exceeded recovery: drop half of the buffered
// range in one go, clamped so nothing at or ahead of the playback position
// is removed. Returns ErrBufferFull when the range is too short to halve
// meaningfully, telling the caller to give up on this segment.
func (f *Feeder) aggressiveTrim(ctx context.Context) error {
	rng, ok := f.buf.Buffered()
	if !ok || rng.Span() < f.cfg.MinTrimRange {
		return ErrBufferFull
	}

	end := rng.Start + rng.Span()/2
	if position := f.host.Position(); end > position {
		end = position
	}
	if end <= rng.Start {
		return ErrBufferFull
	}

	slog.Warn("player.feeder.quota_trim",
		"buffered_start", rng.Start,
		"buffered_end", rng.End,
		"trim_to", end,
	)
	return f.trim(ctx, rng.Start, end)
}

// trim removes [start, end) under Busy. Trimming and appending are never in
// flight together: the removal's completion is awaited like an append's.
func (f *Feeder) trim(ctx context.Context, start, end time.Duration) error {
	f.setState(FeederBusy)
	defer f.setState(FeederIdle)

	if err := f.buf.Remove(start, end); err != nil {
		return fmt.Errorf("trim buffer: %w", err)
	}
	return f.awaitBuffer(ctx)
}

// awaitBuffer blocks for the completion of the in-flight buffer operation.
func (f *Feeder) awaitBuffer(ctx context.Context) error {
	select {
	case err := <-f.buf.Updated():
		return err
	case <-ctx.Done():
		f.setState(FeederClosed)
		return errFeederClosed
	}
}

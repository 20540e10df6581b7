package player

import (
	"context"
	"sync"
	"time"
)

// appendOutcome scripts one Append call on the fake buffer: a synchronous
// rejection, an asynchronous completion error, or plain success.
type appendOutcome struct {
	sync  error
	async error
}

type removeCall struct {
	start time.Duration
	end   time.Duration
}

// fakeBuffer records every operation and plays back scripted outcomes.
type fakeBuffer struct {
	mu         sync.Mutex
	appends    [][]byte
	removes    []removeCall
	appendPlan []appendOutcome
	buffered   TimeRange
	hasRange   bool
	closed     bool
	updated    chan error
}

func newFakeBuffer() *fakeBuffer {
	return &fakeBuffer{updated: make(chan error, 32)}
}

func (b *fakeBuffer) setBuffered(start, end time.Duration) {
	b.mu.Lock()
	b.buffered = TimeRange{Start: start, End: end}
	b.hasRange = true
	b.mu.Unlock()
}

func (b *fakeBuffer) Append(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var outcome appendOutcome
	if len(b.appendPlan) > 0 {
		outcome = b.appendPlan[0]
		b.appendPlan = b.appendPlan[1:]
	}
	if outcome.sync != nil {
		return outcome.sync
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	b.appends = append(b.appends, copied)
	b.updated <- outcome.async
	return nil
}

func (b *fakeBuffer) Remove(start, end time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removes = append(b.removes, removeCall{start: start, end: end})
	if b.hasRange && end > b.buffered.Start {
		b.buffered.Start = end
	}
	b.updated <- nil
	return nil
}

func (b *fakeBuffer) Updated() <-chan error {
	return b.updated
}

func (b *fakeBuffer) Buffered() (TimeRange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffered, b.hasRange
}

func (b *fakeBuffer) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBuffer) appended() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.appends...)
}

func (b *fakeBuffer) removed() []removeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]removeCall(nil), b.removes...)
}

// fakeHost answers capability probes from a fixed set and hands out one
// fake buffer.
type fakeHost struct {
	mu        sync.Mutex
	supported map[string]bool
	buf       *fakeBuffer
	createErr error
	probed    []string
	created   []string
	boundURL  string
	bindErr   error
	position  time.Duration
	released  bool
}

func newFakeHost(supported ...string) *fakeHost {
	set := make(map[string]bool, len(supported))
	for _, codec := range supported {
		set[codec] = true
	}
	return &fakeHost{supported: set, buf: newFakeBuffer()}
}

func (h *fakeHost) Supports(_ context.Context, codec string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probed = append(h.probed, codec)
	return h.supported[codec], nil
}

func (h *fakeHost) CreateBuffer(_ context.Context, codec string) (DecodeBuffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return nil, h.createErr
	}
	h.created = append(h.created, codec)
	return h.buf, nil
}

func (h *fakeHost) BindStreamURL(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bindErr != nil {
		return h.bindErr
	}
	h.boundURL = url
	return nil
}

func (h *fakeHost) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *fakeHost) setPosition(d time.Duration) {
	h.mu.Lock()
	h.position = d
	h.mu.Unlock()
}

func (h *fakeHost) Release() {
	h.mu.Lock()
	h.released = true
	h.mu.Unlock()
}

// stateRecorder collects session state changes for assertions.
type stateRecorder struct {
	ch chan StateChange
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan StateChange, 32)}
}

func (r *stateRecorder) notify(change StateChange) {
	r.ch <- change
}

// waitFor blocks until the given state is observed or the timeout fires.
func (r *stateRecorder) waitFor(state SessionState, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case change := <-r.ch:
			if change.State == state {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

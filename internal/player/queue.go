package player

import (
	"context"
	"errors"
	"sync"
)

var (
	// errQueueDone is returned by Wait once the producer finished cleanly
	// and every queued segment has been drained.
	errQueueDone = errors.New("segment queue done")
	// errQueueClosed is returned by Wait after a teardown Close.
	errQueueClosed = errors.New("segment queue closed")
)

// segmentQueue is the ordered hand-off between the byte-stream pump and the
// feeder. Strict FIFO; segments leave only through Pop after the feeder has
// dealt with them. Unbounded on purpose: growth is contained downstream by
// buffer eviction, not by queue bounding (see DESIGN.md).
type segmentQueue struct {
	mu       sync.Mutex
	segments [][]byte
	wake     chan struct{}
	finished bool
	closed   bool
}

func newSegmentQueue() *segmentQueue {
	return &segmentQueue{wake: make(chan struct{}, 1)}
}

// Push appends a segment. Segments pushed after Close or Finish are dropped.
func (q *segmentQueue) Push(segment []byte) {
	q.mu.Lock()
	if q.closed || q.finished {
		q.mu.Unlock()
		return
	}
	q.segments = append(q.segments, segment)
	q.mu.Unlock()
	q.signal()
}

// Wait blocks until a segment is available and returns it without removing
// it. It returns errQueueDone when the producer finished and the queue is
// empty, errQueueClosed after teardown, or the context error.
func (q *segmentQueue) Wait(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		switch {
		case q.closed:
			q.mu.Unlock()
			return nil, errQueueClosed
		case len(q.segments) > 0:
			segment := q.segments[0]
			q.mu.Unlock()
			return segment, nil
		case q.finished:
			q.mu.Unlock()
			return nil, errQueueDone
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pop removes the segment previously returned by Wait.
func (q *segmentQueue) Pop() {
	q.mu.Lock()
	if len(q.segments) > 0 {
		q.segments[0] = nil
		q.segments = q.segments[1:]
	}
	q.mu.Unlock()
}

// Len reports the number of queued segments.
func (q *segmentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.segments)
}

// Finish marks clean end of input; queued segments still drain.
func (q *segmentQueue) Finish() {
	q.mu.Lock()
	q.finished = true
	q.mu.Unlock()
	q.signal()
}

// Close tears the queue down and discards pending content.
func (q *segmentQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.segments = nil
	q.mu.Unlock()
	q.signal()
}

func (q *segmentQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

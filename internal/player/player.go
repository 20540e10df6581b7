// Package player implements the segmented playback pipeline: a byte-stream
// source pulling fragmented container segments over HTTP, an ordered segment
// queue, and a feeder state machine that drives a host decode buffer while
// keeping its memory bounded through sliding-window eviction.
package player

import (
	"context"
	"errors"
	"time"

	"casaview/config"
)

// Pipeline error taxonomy.
var (
	// ErrNoSupportedCodec means no negotiation candidate was accepted by
	// the host. Terminal; the candidate list is static configuration, so
	// there is nothing to retry with.
	ErrNoSupportedCodec = errors.New("no supported codec")
	// ErrSourceFailed marks byte-stream failures: connect errors, non-2xx
	// responses, resets mid-stream.
	ErrSourceFailed = errors.New("stream source failed")
	// ErrBufferFull is a capacity rejection from the decode buffer. Always
	// recovered locally via eviction; never surfaced to the viewer unless
	// recovery itself fails.
	ErrBufferFull = errors.New("decode buffer full")
)

// TimeRange is a half-open [Start, End) interval of buffered media time.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

// Span returns the length of the range.
func (r TimeRange) Span() time.Duration {
	return r.End - r.Start
}

// DecodeBuffer is the host-provided media buffer. Append and Remove start
// asynchronous operations; at most one may be in flight, and its completion
// is delivered on Updated. Append may also reject synchronously with
// ErrBufferFull. A result of ErrBufferFull on Updated is likewise a
// capacity rejection; any other non-nil result is an unrecoverable decode
// fault.
type DecodeBuffer interface {
	Append(data []byte) error
	Remove(start, end time.Duration) error
	Updated() <-chan error
	Buffered() (TimeRange, bool)
	Close() error
}

// Host abstracts the viewer platform the pipeline plays into: codec
// capability answers, decode buffer creation, direct URL binding for MJPEG,
// and the current playback position of the display surface.
type Host interface {
	// Supports answers whether the host can decode the given codec.
	// Modeled as a query with a context because on remote hosts it is a
	// round trip.
	Supports(ctx context.Context, codec string) (bool, error)
	// CreateBuffer creates the decode buffer for the negotiated codec and
	// binds it to the display surface.
	CreateBuffer(ctx context.Context, codec string) (DecodeBuffer, error)
	// BindStreamURL points the display surface directly at a stream URL
	// (MJPEG path). The returned error is the surface's "errored" signal.
	BindStreamURL(ctx context.Context, url string) error
	// Position reports the surface's current playback time.
	Position() time.Duration
	// Release drops any surface binding. Idempotent.
	Release()
}

// Config tunes one playback session.
type Config struct {
	// Candidates is the ordered codec negotiation list, most capable first.
	Candidates []string
	// EvictAfter is the played-but-buffered margin that triggers a routine
	// trim before the next append.
	EvictAfter time.Duration
	// RewindMargin of already-played media survives every trim.
	RewindMargin time.Duration
	// MinTrimRange is the smallest buffered range worth halving during
	// quota recovery.
	MinTrimRange time.Duration
	// ChunkBytes is the read size of the byte-stream source.
	ChunkBytes int
	// ReconnectAttempts bounds manager-level reconnection. Zero disables it.
	ReconnectAttempts int
	// ReconnectDelay is the initial backoff delay between reconnects.
	ReconnectDelay time.Duration
}

const (
	defaultEvictAfter   = 30 * time.Second
	defaultRewindMargin = 10 * time.Second
	defaultMinTrimRange = 5 * time.Second
	defaultChunkBytes   = 64 * 1024
)

// withDefaults fills zero fields with pipeline defaults.
func (c Config) withDefaults() Config {
	if c.EvictAfter <= 0 {
		c.EvictAfter = defaultEvictAfter
	}
	if c.RewindMargin <= 0 {
		c.RewindMargin = defaultRewindMargin
	}
	if c.MinTrimRange <= 0 {
		c.MinTrimRange = defaultMinTrimRange
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = defaultChunkBytes
	}
	return c
}

// ConfigFromSettings builds a pipeline config from persisted settings.
func ConfigFromSettings(s config.PlayerSettings) Config {
	return Config{
		Candidates:        append([]string(nil), s.CodecCandidates...),
		EvictAfter:        s.EvictAfter(),
		RewindMargin:      s.RewindMargin(),
		MinTrimRange:      s.MinTrimRange(),
		ChunkBytes:        s.ChunkBytes,
		ReconnectAttempts: s.ReconnectAttempts,
		ReconnectDelay:    time.Duration(s.ReconnectDelaySeconds) * time.Second,
	}.withDefaults()
}

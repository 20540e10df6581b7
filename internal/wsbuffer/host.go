package wsbuffer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"casaview/internal/player"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var errConnClosed = errors.New("wsbuffer: connection closed")

// Host bridges a single viewer connection to the playback pipeline. It
// satisfies both player.Host and player.DecodeBuffer: the decode buffer
// lives in the viewer, so creating it just flips the connection into
// segment mode.
type Host struct {
	conn *websocket.Conn
	log  *slog.Logger

	// gorilla permits one concurrent writer per connection.
	writeMu sync.Mutex

	capability chan bool
	updated    chan error

	mu       sync.Mutex
	pending  string // op awaiting its ack, empty when none
	position time.Duration
	buffered player.TimeRange
	hasRange bool

	closed chan struct{}

	bufClosed sync.Once
}

var (
	_ player.Host         = (*Host)(nil)
	_ player.DecodeBuffer = (*Host)(nil)
)

func NewHost(conn *websocket.Conn, logger *slog.Logger) *Host {
	return &Host{
		conn:       conn,
		log:        logger,
		capability: make(chan bool, 1),
		updated:    make(chan error, 16),
		closed:     make(chan struct{}),
	}
}

// ReadPump consumes the connection until it dies and dispatches viewer
// messages. The caller runs it in its own goroutine and treats its return
// as the end of the viewer session.
func (h *Host) ReadPump() error {
	go h.pingLoop()

	h.conn.SetReadLimit(maxMessageSize)
	_ = h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		return h.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var err error
	for {
		var msg controlMessage
		if err = h.conn.ReadJSON(&msg); err != nil {
			break
		}
		h.dispatch(msg)
	}

	close(h.closed)

	// Unblock any in-flight operation waiting on an ack.
	select {
	case h.updated <- errConnClosed:
	default:
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		return err
	}
	return nil
}

func (h *Host) dispatch(msg controlMessage) {
	switch msg.Type {
	case msgCapability:
		select {
		case h.capability <- msg.Supported:
		default:
		}
	case msgAck:
		h.mu.Lock()
		matched := h.pending != "" && msg.Op == h.pending
		if matched {
			h.pending = ""
		}
		h.mu.Unlock()
		if !matched {
			// A stray or duplicate ack must not complete whatever
			// operation comes next.
			h.log.Warn("wsbuffer.ack.unsolicited", "op", msg.Op)
			return
		}

		var res error
		switch {
		case msg.Error == "":
		case msg.Error == ackErrQuota:
			res = player.ErrBufferFull
		default:
			res = errors.New(msg.Error)
		}
		select {
		case h.updated <- res:
		default:
			h.log.Warn("wsbuffer.ack.dropped", "op", msg.Op)
		}
	case msgStatus:
		h.mu.Lock()
		h.position = secondsToDuration(msg.Position)
		h.hasRange = msg.HasBuffered
		if msg.HasBuffered {
			h.buffered = player.TimeRange{
				Start: secondsToDuration(msg.BufferedStart),
				End:   secondsToDuration(msg.BufferedEnd),
			}
		}
		h.mu.Unlock()
	default:
		h.log.Warn("wsbuffer.message.unknown", "type", msg.Type)
	}
}

func (h *Host) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.writeMu.Lock()
			_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := h.conn.WriteMessage(websocket.PingMessage, nil)
			h.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-h.closed:
			return
		}
	}
}

func (h *Host) writeControl(msg controlMessage) error {
	select {
	case <-h.closed:
		return errConnClosed
	default:
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.conn.WriteJSON(msg)
}

// Supports asks the viewer whether it can decode the codec and waits for
// the answer.
func (h *Host) Supports(ctx context.Context, codec string) (bool, error) {
	if err := h.writeControl(controlMessage{Type: msgProbe, Codec: codec}); err != nil {
		return false, err
	}
	select {
	case ok := <-h.capability:
		return ok, nil
	case <-h.closed:
		return false, errConnClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// CreateBuffer tells the viewer to stand up its decode buffer for the
// codec. The host itself is the buffer handle from then on.
func (h *Host) CreateBuffer(ctx context.Context, codec string) (player.DecodeBuffer, error) {
	if err := h.writeControl(controlMessage{Type: msgCreate, Codec: codec}); err != nil {
		return nil, err
	}
	return h, nil
}

// BindStreamURL points the viewer's playback surface straight at a URL,
// bypassing the segment pipeline.
func (h *Host) BindStreamURL(ctx context.Context, url string) error {
	return h.writeControl(controlMessage{Type: msgBindURL, URL: url})
}

func (h *Host) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *Host) Release() {}

// NotifyState forwards a session state change to the viewer for UI
// binding. Write failures are ignored, the read pump will notice a dead
// connection on its own.
func (h *Host) NotifyState(state, reason string) {
	_ = h.writeControl(controlMessage{Type: msgState, State: state, Reason: reason})
}

// beginOp marks the operation whose ack is awaited. The feeder submits
// one operation at a time, so a single slot is enough.
func (h *Host) beginOp(op string) {
	h.mu.Lock()
	h.pending = op
	h.mu.Unlock()
}

func (h *Host) endOp() {
	h.mu.Lock()
	h.pending = ""
	h.mu.Unlock()
}

// Append ships a segment to the viewer. Completion, including quota
// rejections, arrives asynchronously on Updated.
func (h *Host) Append(data []byte) error {
	select {
	case <-h.closed:
		return errConnClosed
	default:
	}
	h.beginOp(opAppend)
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := h.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		h.endOp()
		return err
	}
	return nil
}

// Remove asks the viewer to trim [start, end) from its buffer.
func (h *Host) Remove(start, end time.Duration) error {
	h.beginOp(opRemove)
	err := h.writeControl(controlMessage{
		Type:  msgRemove,
		Start: durationToSeconds(start),
		End:   durationToSeconds(end),
	})
	if err != nil {
		h.endOp()
	}
	return err
}

func (h *Host) Updated() <-chan error {
	return h.updated
}

func (h *Host) Buffered() (player.TimeRange, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffered, h.hasRange
}

// Close tells the viewer its decode buffer is gone. The connection itself
// stays up, it belongs to the handler.
func (h *Host) Close() error {
	h.bufClosed.Do(func() {
		_ = h.writeControl(controlMessage{Type: msgClose})
	})
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func durationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

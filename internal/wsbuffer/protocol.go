// Package wsbuffer drives a viewer's media decode buffer over a websocket.
// Binary frames carry media segments downstream; JSON control frames carry
// capability answers, operation acks and playback status upstream. It is
// the production Host implementation of the playback pipeline: the actual
// decoding happens in the viewer, the gateway only oversees the append
// cycle remotely.
package wsbuffer

// Server-to-viewer control message types.
const (
	msgProbe   = "probe"    // ask whether a codec is decodable
	msgCreate  = "create"   // create the decode buffer for a codec
	msgRemove  = "remove"   // trim a buffered time range
	msgBindURL = "bind_url" // bind the surface directly to a URL (MJPEG)
	msgState   = "state"    // session state change for UI binding
	msgClose   = "close"    // decode buffer torn down
)

// Viewer-to-server control message types.
const (
	msgCapability = "capability" // answer to a probe
	msgAck        = "ack"        // completion of an append or remove
	msgStatus     = "status"     // playback position and buffered range
)

// Ack error classes. Anything else in Error is an unrecoverable decode
// fault description.
const (
	ackErrQuota = "quota"
)

// Ack op names. The viewer echoes the op it is acknowledging so the host
// can tell a real completion from a stray or duplicate ack.
const (
	opAppend = "append"
	opRemove = "remove"
)

// controlMessage is the JSON envelope shared by both directions. Fields
// are populated per message type; seconds are fractional.
type controlMessage struct {
	Type   string `json:"type"`
	Codec  string `json:"codec,omitempty"`
	URL    string `json:"url,omitempty"`
	State  string `json:"state,omitempty"`
	Reason string `json:"reason,omitempty"`

	// msgRemove request range.
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`

	// msgCapability answer.
	Supported bool `json:"supported,omitempty"`

	// msgAck payload.
	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"`

	// msgStatus payload.
	Position      float64 `json:"position,omitempty"`
	BufferedStart float64 `json:"buffered_start,omitempty"`
	BufferedEnd   float64 `json:"buffered_end,omitempty"`
	HasBuffered   bool    `json:"has_buffered,omitempty"`
}

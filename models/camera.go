package models

import (
	"fmt"
	"strings"
	"time"
)

// StreamType classifies how a camera delivers its feed.
type StreamType string

const (
	StreamTypeMJPEG  StreamType = "mjpeg"
	StreamTypeRTSP   StreamType = "rtsp"
	StreamTypeWebRTC StreamType = "webrtc"
)

// ParseStreamType validates a stream type string coming from the API layer.
func ParseStreamType(s string) (StreamType, error) {
	switch StreamType(strings.ToLower(strings.TrimSpace(s))) {
	case StreamTypeMJPEG:
		return StreamTypeMJPEG, nil
	case StreamTypeRTSP:
		return StreamTypeRTSP, nil
	case StreamTypeWebRTC:
		return StreamTypeWebRTC, nil
	default:
		return "", fmt.Errorf("unknown stream type %q", s)
	}
}

// Camera is a configured camera feed.
type Camera struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StreamURL string     `json:"stream_url"`
	Type      StreamType `json:"stream_type"`
	Enabled   bool       `json:"enabled"`
	Username  string     `json:"-"`
	Password  string     `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AddCameraRequest is the payload for creating a camera.
type AddCameraRequest struct {
	Name       string `json:"name"`
	StreamURL  string `json:"stream_url"`
	StreamType string `json:"stream_type"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// UpdateCameraRequest carries optional field updates; nil means unchanged.
type UpdateCameraRequest struct {
	Name       *string `json:"name,omitempty"`
	StreamURL  *string `json:"stream_url,omitempty"`
	StreamType *string `json:"stream_type,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

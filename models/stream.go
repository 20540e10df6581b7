package models

import (
	"net/url"
	"strings"
)

// StreamKind is the playback transport a descriptor resolves to.
type StreamKind string

const (
	// KindMJPEG binds the display surface straight to the stream URL.
	KindMJPEG StreamKind = "mjpeg"
	// KindSegmentedVideo feeds fragmented container segments through the
	// buffered playback pipeline.
	KindSegmentedVideo StreamKind = "segmented_video"
	// KindUnsupported is terminal; no network activity is performed.
	KindUnsupported StreamKind = "unsupported"
)

// StreamDescriptor is the immutable input of one playback session. A new
// descriptor always means a new session.
type StreamDescriptor struct {
	URL  string     `json:"url"`
	Kind StreamKind `json:"kind"`
}

// DescriptorFor maps a camera record onto the transport the playback
// pipeline understands. RTSP cameras are consumed through an external
// remux endpoint that serves fragmented video over HTTP, so they surface
// as segmented video; remuxTemplate is that endpoint with a {url}
// placeholder for the escaped camera URL. Without a remuxer there is no
// way to play an RTSP feed.
func DescriptorFor(cam Camera, remuxTemplate string) StreamDescriptor {
	switch cam.Type {
	case StreamTypeMJPEG:
		return StreamDescriptor{URL: cam.StreamURL, Kind: KindMJPEG}
	case StreamTypeRTSP:
		if remuxTemplate == "" {
			return StreamDescriptor{URL: cam.StreamURL, Kind: KindUnsupported}
		}
		remuxed := strings.ReplaceAll(remuxTemplate, "{url}", url.QueryEscape(cam.StreamURL))
		return StreamDescriptor{URL: remuxed, Kind: KindSegmentedVideo}
	default:
		return StreamDescriptor{URL: cam.StreamURL, Kind: KindUnsupported}
	}
}

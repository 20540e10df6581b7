// Package mjpeg turns camera byte streams into browser-consumable
// multipart MJPEG. Cameras either already speak multipart/x-mixed-replace,
// in which case the stream passes through untouched, or they emit a raw
// concatenation of JPEG images that has to be split on SOI/EOI markers and
// re-framed with part headers.
package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/acomagu/bufpipe"
	"github.com/gabriel-vasile/mimetype"
)

// Boundary is the multipart boundary used for re-framed output.
const Boundary = "frame"

// ContentType is the response content type for re-framed streams.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// ErrUnsupportedStream means the upstream bytes are neither multipart
// MJPEG nor a raw JPEG sequence.
var ErrUnsupportedStream = errors.New("mjpeg: upstream is not an mjpeg stream")

const sniffLen = 512

// StreamKind classifies what the camera is sending.
type StreamKind int

const (
	// KindMultipart means the upstream already carries part boundaries.
	KindMultipart StreamKind = iota
	// KindRawJPEG means back-to-back JPEG images with no framing.
	KindRawJPEG
)

// DetectKind decides how to treat the upstream. The declared content type
// wins when present; otherwise the first bytes are sniffed. The returned
// reader must be used in place of src, it has the sniffed prefix stitched
// back on.
func DetectKind(src io.Reader, contentType string) (StreamKind, io.Reader, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "multipart/x-mixed-replace":
			return KindMultipart, src, nil
		case mt == "image/jpeg":
			return KindRawJPEG, src, nil
		case strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"):
			return 0, src, fmt.Errorf("%w: upstream sent %s", ErrUnsupportedStream, mt)
		}
	}

	prefix := make([]byte, sniffLen)
	n, err := io.ReadFull(src, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, src, fmt.Errorf("mjpeg: sniffing upstream: %w", err)
	}
	prefix = prefix[:n]
	stitched := io.MultiReader(bytes.NewReader(prefix), src)

	if mimetype.Detect(prefix).Is("image/jpeg") {
		return KindRawJPEG, stitched, nil
	}
	// Multipart streams open with the boundary delimiter line.
	if bytes.HasPrefix(bytes.TrimLeft(prefix, "\r\n"), []byte("--")) {
		return KindMultipart, stitched, nil
	}
	return 0, stitched, ErrUnsupportedStream
}

// Reframe splits raw JPEG bytes from src into frames and writes them to
// dst as multipart parts, flushing after each frame. A buffered pipe sits
// between the scanner and the client write so a briefly stalled client
// does not backpressure the camera read. Reframe returns when src ends or
// ctx is cancelled; the caller is expected to close src on cancellation to
// unblock the scanner.
func Reframe(ctx context.Context, dst io.Writer, src io.Reader) error {
	pr, pw := bufpipe.New(nil)

	go func() {
		scanner := NewScanner(src)
		mw := newPartWriter(pw)
		for {
			frame, err := scanner.Next()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := mw.writeFrame(frame); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
	}()

	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := pr.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// partWriter emits one multipart part per frame.
type partWriter struct {
	w io.Writer
}

func newPartWriter(w io.Writer) *partWriter {
	return &partWriter{w: w}
}

func (p *partWriter) writeFrame(frame []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(frame))
	if _, err := io.WriteString(p.w, header); err != nil {
		return err
	}
	if _, err := p.w.Write(frame); err != nil {
		return err
	}
	_, err := io.WriteString(p.w, "\r\n")
	return err
}

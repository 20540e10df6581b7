package mjpeg

import (
	"bytes"
	"io"
)

var (
	soiMarker = []byte{0xFF, 0xD8} // start of image
	eoiMarker = []byte{0xFF, 0xD9} // end of image
)

// maxFrameBytes bounds how much unframed data the scanner will hold while
// looking for an end-of-image marker. Frames beyond this are not camera
// output, they are a misbehaving upstream.
const maxFrameBytes = 8 << 20

// Scanner extracts complete JPEG images from a raw byte stream. Bytes
// between frames (padding, stray headers) are discarded.
type Scanner struct {
	r   io.Reader
	buf []byte
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Next returns the next complete frame, from SOI through EOI inclusive.
// It returns io.EOF when the stream ends with no partial frame pending,
// and io.ErrUnexpectedEOF when it ends mid-frame.
func (s *Scanner) Next() ([]byte, error) {
	chunk := make([]byte, 32*1024)
	for {
		if frame, ok := s.takeFrame(); ok {
			return frame, nil
		}
		if len(s.buf) > maxFrameBytes {
			return nil, ErrUnsupportedStream
		}

		n, err := s.r.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF && s.hasPartialFrame() {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

func (s *Scanner) takeFrame() ([]byte, bool) {
	start := bytes.Index(s.buf, soiMarker)
	if start < 0 {
		// No frame start anywhere in the buffer. Keep the final byte in
		// case it is the first half of a marker split across reads.
		if len(s.buf) > 1 {
			s.buf = s.buf[len(s.buf)-1:]
		}
		return nil, false
	}
	end := bytes.Index(s.buf[start+len(soiMarker):], eoiMarker)
	if end < 0 {
		s.buf = s.buf[start:]
		return nil, false
	}
	end += start + len(soiMarker) + len(eoiMarker)

	frame := make([]byte, end-start)
	copy(frame, s.buf[start:end])
	s.buf = s.buf[end:]
	return frame, true
}

func (s *Scanner) hasPartialFrame() bool {
	return bytes.Contains(s.buf, soiMarker)
}

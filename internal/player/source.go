package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ChunkSource pulls the camera's chunked HTTP body one binary chunk at a
// time. It distinguishes three outcomes: a chunk, clean server close
// (io.EOF), and failure (ErrSourceFailed). Reconnection is not its job; a
// broken source means a broken session.
type ChunkSource struct {
	body      io.ReadCloser
	buf       []byte
	closeOnce sync.Once
}

// OpenSource issues the stream GET. A non-2xx response or connect error is
// an ErrSourceFailed. The request is bound to ctx, so cancelling the owning
// session unblocks any in-flight read.
func OpenSource(ctx context.Context, client *http.Client, url string, chunkBytes int) (*ChunkSource, error) {
	if chunkBytes <= 0 {
		chunkBytes = defaultChunkBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSourceFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrSourceFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceFailed, resp.StatusCode)
	}

	return &ChunkSource{
		body: resp.Body,
		buf:  make([]byte, chunkBytes),
	}, nil
}

// Next returns the next chunk as delivered by the network. Each chunk is
// self-contained at the binary level, so it is handed downstream as one
// segment without splitting or reassembly.
func (s *ChunkSource) Next() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read: %v", ErrSourceFailed, err)
		}
		// Zero-byte read without error is legal for io.Reader; pull again.
	}
}

// Close terminates the underlying connection. Safe to call more than once.
func (s *ChunkSource) Close() {
	s.closeOnce.Do(func() {
		_ = s.body.Close()
	})
}

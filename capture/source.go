package capture

import (
	"errors"
	"io"
	"sync"
)

// ErrCaptureUnavailable is returned by Pump.Start when no audio source
// exists or the source cannot be acquired.
var ErrCaptureUnavailable = errors.New("capture: audio source unavailable")

// Source yields raw audio bytes. Implementations wrap a microphone
// device or, for tests and file playback, any io.Reader; the pump does
// not care which.
type Source interface {
	// ReadFrame fills buf with up to len(buf) bytes of captured audio
	// and returns the count. io.EOF signals the source is exhausted.
	ReadFrame(buf []byte) (int, error)
	// Close releases the underlying device. Idempotent.
	Close() error
}

// ReaderSource adapts an io.Reader into a Source, letting recorded audio
// stand in for a live microphone.
type ReaderSource struct {
	mu     sync.Mutex
	r      io.Reader
	closed bool
}

// NewReaderSource wraps r. A nil reader yields an immediately exhausted
// source.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// ReadFrame reads the next frame worth of bytes from the reader. Short
// reads near the end of the stream are returned as-is.
func (s *ReaderSource) ReadFrame(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.r == nil {
		return 0, io.EOF
	}
	n, err := io.ReadFull(s.r, buf)
	if err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}

// Close marks the source exhausted.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

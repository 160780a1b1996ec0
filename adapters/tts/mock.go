package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

// mockChunkSize keeps synthesized replies multi-chunk so streaming
// consumers get exercised.
const mockChunkSize = 64

// MockTextToSpeech synthesizes deterministic pseudo-audio: the reply
// text repeated into bytes, delivered in fixed-size chunks. Tests can
// reconstruct the expected payload from the text alone.
type MockTextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates the mock synthesizer.
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// ConvertTextToSpeech streams the deterministic payload for text.
func (m *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	payload := MockAudioFor(text)
	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)

		for start := 0; start < len(payload); start += mockChunkSize {
			end := start + mockChunkSize
			if end > len(payload) {
				end = len(payload)
			}

			select {
			case audioChan <- payload[start:end]:
			case <-ctx.Done():
				m.logger.Warn("Mock synthesis cancelled", zap.Error(ctx.Err()))
				return
			}
		}
	}()

	return audioChan, nil
}

// MockAudioFor returns the exact bytes the mock synthesizer streams for
// text, so tests can assert on assembled replies.
func MockAudioFor(text string) []byte {
	return []byte(strings.Repeat(text+" ", 3))
}

package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

// MockSpeechToText is a deterministic recognizer for development and
// tests: the transcript depends only on how much audio arrived.
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates the mock recognizer.
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// InitTranscribeStreaming starts a mock streaming session.
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Debug("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockStream{logger: s.logger}, nil
}

type mockStream struct {
	logger     *zap.Logger
	totalBytes int
}

func (m *mockStream) Stream(data []byte) error {
	m.totalBytes += len(data)
	m.logger.Debug("Mock transcription received chunk",
		zap.Int("size", len(data)),
		zap.Int("totalBytes", m.totalBytes))
	return nil
}

func (m *mockStream) End() (string, error) {
	if m.totalBytes == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	return transcriptForSize(m.totalBytes), nil
}

// TranscribeAudio recognizes one complete utterance.
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	return transcriptForSize(len(audioData)), nil
}

func transcriptForSize(n int) string {
	switch {
	case n > 100000:
		return "Could you walk me through everything that happened today, from the beginning?"
	case n > 20000:
		return "What is the weather looking like this afternoon?"
	case n > 1000:
		return "Hello there, can you hear me?"
	default:
		return "hello"
	}
}

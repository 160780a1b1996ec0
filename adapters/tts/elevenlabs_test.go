package tts

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	if _, err := NewElevenLabsTTS(config, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	tts, err := NewElevenLabsTTS(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}
	if tts.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, tts.voiceID)
	}
	if tts.outputFormat != defaultOutputFormat {
		t.Errorf("Expected default output format '%s', got '%s'", defaultOutputFormat, tts.outputFormat)
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	cases := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"missing key", ElevenLabsConfig{}, true},
		{"valid minimal", ElevenLabsConfig{APIKey: "k"}, false},
		{"stability out of range", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "k", Clarity: -0.1}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "k", ChunkSize: -1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tc.config)
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestElevenLabsTTS_StreamsChunksFromAPI(t *testing.T) {
	logger := zaptest.NewLogger(t)

	payload := bytes.Repeat([]byte{0x5A}, 2500)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Missing API key header")
		}
		if r.Header.Get("Accept") != "audio/pcm" {
			t.Errorf("Expected audio/pcm accept header for PCM output, got %q", r.Header.Get("Accept"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	audioChan, err := tts.ConvertTextToSpeech(ctx, "hello world")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}

	var received []byte
	for chunk := range audioChan {
		received = append(received, chunk...)
	}

	if !bytes.Equal(received, payload) {
		t.Errorf("Expected %d bytes back, got %d", len(payload), len(received))
	}
}

func TestElevenLabsTTS_EmptyText(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.ConvertTextToSpeech(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestMockTextToSpeech_DeterministicPayload(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mock := NewMockTextToSpeech(logger)

	audioChan, err := mock.ConvertTextToSpeech(context.Background(), "hi")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}

	var received []byte
	for chunk := range audioChan {
		received = append(received, chunk...)
	}

	if !bytes.Equal(received, MockAudioFor("hi")) {
		t.Errorf("Mock payload mismatch: got %q", received)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/voxstream/voxstream/adapters/llm"
	"github.com/voxstream/voxstream/adapters/stt"
	"github.com/voxstream/voxstream/adapters/tts"
	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/protocol"
	"github.com/voxstream/voxstream/usecase"
)

func newTestHub(t *testing.T, speech repositories.TextToSpeech) *Hub {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if speech == nil {
		speech = tts.NewMockTextToSpeech(logger)
	}
	conversation := usecase.NewConversationService(
		stt.NewMockSpeechToText(logger),
		speech,
		llm.NewMockLLM(),
		repositories.AudioConfig{SampleRate: 16000, Encoding: "pcm16", Language: "en-US"},
		logger,
	)
	return NewHub(conversation, logger)
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.GET("/v1/session", func(c echo.Context) error {
		return hub.HandleSession(c, c.QueryParam("session_id"))
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dialSession(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, ok := protocol.DecodeEvent(frame)
		if !ok {
			t.Fatalf("Undecodable event frame: %s", frame)
		}
		return ev
	}
}

func TestSession_FullTurn(t *testing.T) {
	hub := newTestHub(t, nil)
	srv := newTestServer(t, hub)
	conn := dialSession(t, srv, "ws_turn")

	audio := bytes.Repeat([]byte{0x01}, 2000)
	for i := 0; i < 2; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[:1000]); err != nil {
			t.Fatalf("Failed to send audio frame: %v", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlCommit)); err != nil {
		t.Fatalf("Failed to send commit: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != protocol.EventTranscript {
		t.Fatalf("Expected transcript, got %s", ev.Type)
	}
	transcript := ev.Text
	if transcript != "Hello there, can you hear me?" {
		t.Errorf("Unexpected transcript: %q", transcript)
	}
	if !ev.Final {
		t.Error("Expected final transcript")
	}

	ev = readEvent(t, conn)
	if ev.Type != protocol.EventResponse {
		t.Fatalf("Expected response, got %s", ev.Type)
	}
	reply := ev.Text
	if reply != llm.MockReplyTo(transcript) {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if ev.Metrics == nil {
		t.Fatal("Expected metrics on response")
	}
	if ev.Metrics.TotalMs < 0 {
		t.Errorf("Negative total_ms: %d", ev.Metrics.TotalMs)
	}

	ev = readEvent(t, conn)
	if ev.Type != protocol.EventAudioStart {
		t.Fatalf("Expected audio_start, got %s", ev.Type)
	}

	var replyAudio []byte
	for {
		ev = readEvent(t, conn)
		if ev.Type == protocol.EventAudioEnd {
			break
		}
		if ev.Type != protocol.EventAudioChunk {
			t.Fatalf("Expected audio_chunk, got %s", ev.Type)
		}
		chunk, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			t.Fatalf("Invalid chunk encoding: %v", err)
		}
		replyAudio = append(replyAudio, chunk...)
	}

	if !bytes.Equal(replyAudio, tts.MockAudioFor(reply)) {
		t.Errorf("Reply audio mismatch: got %d bytes", len(replyAudio))
	}
}

func TestSession_SecondConnectionRejected(t *testing.T) {
	hub := newTestHub(t, nil)
	srv := newTestServer(t, hub)
	dialSession(t, srv, "ws_dup")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/session?session_id=ws_dup"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 rejection, got %+v", resp)
	}
}

func TestSession_IDFreedAfterDisconnect(t *testing.T) {
	hub := newTestHub(t, nil)
	srv := newTestServer(t, hub)

	conn := dialSession(t, srv, "ws_reuse")
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ActiveSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Session was not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	dialSession(t, srv, "ws_reuse")
}

func TestSession_ResetDiscardsUtteranceAndAcks(t *testing.T) {
	hub := newTestHub(t, nil)
	srv := newTestServer(t, hub)
	conn := dialSession(t, srv, "ws_reset")

	if err := conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x02}, 3000)); err != nil {
		t.Fatalf("Failed to send audio frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlReset)); err != nil {
		t.Fatalf("Failed to send reset: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != protocol.EventReset {
		t.Fatalf("Expected reset ack, got %s", ev.Type)
	}

	// The discarded audio must not leak into the next turn.
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlCommit))
	ev = readEvent(t, conn)
	if ev.Type != protocol.EventError || ev.Code != "stt_failed" {
		t.Fatalf("Expected stt_failed for empty utterance, got %s/%s", ev.Type, ev.Code)
	}
}

func TestSession_PipelineErrorKeepsSocketOpen(t *testing.T) {
	hub := newTestHub(t, nil)
	srv := newTestServer(t, hub)
	conn := dialSession(t, srv, "ws_err")

	// Commit with nothing buffered fails transcription.
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlCommit))
	ev := readEvent(t, conn)
	if ev.Type != protocol.EventError {
		t.Fatalf("Expected error event, got %s", ev.Type)
	}

	// The session still works afterwards.
	conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x03}, 2000))
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlCommit))
	ev = readEvent(t, conn)
	if ev.Type != protocol.EventTranscript {
		t.Fatalf("Expected transcript after recovery, got %s", ev.Type)
	}
}

type failingTTS struct{}

func (failingTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	return nil, errors.New("synth backend down")
}

func TestSession_SynthesisFailureStillSendsResponse(t *testing.T) {
	hub := newTestHub(t, failingTTS{})
	srv := newTestServer(t, hub)
	conn := dialSession(t, srv, "ws_tts")

	conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x04}, 2000))
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(protocol.ControlCommit))

	ev := readEvent(t, conn)
	if ev.Type != protocol.EventTranscript {
		t.Fatalf("Expected transcript, got %s", ev.Type)
	}
	ev = readEvent(t, conn)
	if ev.Type != protocol.EventResponse {
		t.Fatalf("Expected response despite synthesis failure, got %s", ev.Type)
	}
	ev = readEvent(t, conn)
	if ev.Type != protocol.EventError || ev.Code != "tts_failed" {
		t.Fatalf("Expected tts_failed, got %s/%s", ev.Type, ev.Code)
	}
}

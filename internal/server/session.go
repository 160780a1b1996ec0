package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
	"github.com/voxstream/voxstream/protocol"
)

type writeData struct {
	messageType int
	payload     []byte
}

// session is one connected socket and its in-memory conversation state.
// The utterance buffer collects binary frames until a commit seals it;
// conversation history lives in the chat session and is never persisted.
type session struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan writeData
	sessionID string
	logger    *zap.Logger

	utterance bytes.Buffer
	chat      repositories.ChatSession

	// In-flight turn. Only the read goroutine starts and cancels
	// turns, so no lock is needed; cancelTurn waits for the turn
	// goroutine to drain before anything touches shared state again.
	turnCancel context.CancelFunc
	turnDone   chan struct{}
}

// readPump pumps frames from the socket: binary frames extend the
// utterance, text frames carry control commands.
func (s *session) readPump() {
	defer func() {
		s.cancelTurn()
		s.hub.release(s)
		close(s.send)
		s.conn.Close()
		s.logger.Info("Session disconnected")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.appendAudio(message)
		case websocket.TextMessage:
			s.handleControl(string(message))
		default:
			s.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued events to the socket and keeps the connection
// alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(message.messageType, message.payload); err != nil {
				s.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) appendAudio(frame []byte) {
	s.utterance.Write(frame)
	s.logger.Debug("Buffered audio frame",
		zap.Int("frameBytes", len(frame)),
		zap.Int("utteranceBytes", s.utterance.Len()))
}

func (s *session) handleControl(command string) {
	switch command {
	case protocol.ControlCommit:
		s.handleCommit()
	case protocol.ControlReset:
		s.handleReset()
	default:
		s.logger.Warn("Unknown control command", zap.String("command", command))
	}
}

// handleCommit seals the buffered utterance and runs the reply pipeline
// for it on its own goroutine, so the read loop stays responsive to a
// reset while the reply is in flight. A commit arriving mid-turn cancels
// the previous turn first.
func (s *session) handleCommit() {
	s.cancelTurn()

	audio := make([]byte, s.utterance.Len())
	copy(audio, s.utterance.Bytes())
	s.utterance.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.turnCancel = cancel
	s.turnDone = done

	go func() {
		defer close(done)
		defer cancel()
		s.runTurn(ctx, audio)
	}()
}

// handleReset discards the buffered utterance and the conversation
// history, cancels any in-flight turn, and acknowledges.
func (s *session) handleReset() {
	s.cancelTurn()
	s.utterance.Reset()
	s.chat = nil

	s.logger.Info("Session state reset")
	s.sendEvent(protocol.Event{Type: protocol.EventReset})
}

// cancelTurn stops the in-flight turn, if any, and waits for its
// goroutine to finish so session state is single-owner again.
func (s *session) cancelTurn() {
	if s.turnCancel == nil {
		return
	}
	s.turnCancel()
	<-s.turnDone
	s.turnCancel = nil
	s.turnDone = nil
}

// runTurn executes one spoken turn: transcribe, reply, synthesize.
// Failures emit error events and leave the socket open.
func (s *session) runTurn(ctx context.Context, audio []byte) {
	turnStart := time.Now()

	transcript, err := s.hub.conversation.Transcribe(ctx, audio)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Transcription failed", zap.Error(err))
		s.sendError("stt_failed", "could not transcribe utterance")
		return
	}
	sttMs := time.Since(turnStart).Milliseconds()

	s.sendEvent(protocol.Event{
		Type:  protocol.EventTranscript,
		Text:  transcript,
		Final: true,
	})

	if s.chat == nil {
		s.chat, err = s.hub.conversation.NewChatSession(ctx)
		if err != nil {
			s.logger.Error("Failed to create chat session", zap.Error(err))
			s.sendError("llm_failed", "could not start conversation")
			return
		}
	}

	llmStart := time.Now()
	reply, err := s.hub.conversation.Reply(ctx, s.chat, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Reply generation failed", zap.Error(err))
		s.sendError("llm_failed", "could not generate reply")
		return
	}
	llmMs := time.Since(llmStart).Milliseconds()

	ttsStart := time.Now()
	audioChan, err := s.hub.conversation.Synthesize(ctx, reply)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Synthesis failed", zap.Error(err))
		// The reply text is still usable without audio.
		s.sendEvent(protocol.Event{
			Type: protocol.EventResponse,
			Text: reply,
			Metrics: &protocol.Metrics{
				SttMs:   sttMs,
				LlmMs:   llmMs,
				TotalMs: time.Since(turnStart).Milliseconds(),
			},
		})
		s.sendError("tts_failed", "could not synthesize reply audio")
		return
	}
	ttsMs := time.Since(ttsStart).Milliseconds()

	s.sendEvent(protocol.Event{
		Type: protocol.EventResponse,
		Text: reply,
		Metrics: &protocol.Metrics{
			SttMs:   sttMs,
			LlmMs:   llmMs,
			TtsMs:   ttsMs,
			TotalMs: time.Since(turnStart).Milliseconds(),
		},
	})

	s.streamReplyAudio(ctx, audioChan)
}

// streamReplyAudio forwards synthesized chunks as base64 audio_chunk
// events. audio_end is sent even when streaming is cut short, so the
// client's reply assembly always finalizes.
func (s *session) streamReplyAudio(ctx context.Context, audioChan <-chan []byte) {
	s.sendEvent(protocol.Event{Type: protocol.EventAudioStart})
	defer s.sendEvent(protocol.Event{Type: protocol.EventAudioEnd})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reply audio streaming cancelled")
			return
		case chunk, ok := <-audioChan:
			if !ok {
				return
			}
			s.sendEvent(protocol.Event{
				Type: protocol.EventAudioChunk,
				Data: base64.StdEncoding.EncodeToString(chunk),
			})
		}
	}
}

func (s *session) sendError(code, message string) {
	s.sendEvent(protocol.Event{
		Type:    protocol.EventError,
		Code:    code,
		Message: message,
	})
}

func (s *session) sendEvent(ev protocol.Event) {
	payload, err := protocol.EncodeEvent(ev)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.Error(err))
		return
	}
	select {
	case s.send <- writeData{messageType: websocket.TextMessage, payload: payload}:
	default:
		s.logger.Warn("Send queue full, dropping event", zap.String("type", string(ev.Type)))
	}
}

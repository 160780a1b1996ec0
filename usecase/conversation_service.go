package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

// ConversationService orchestrates one spoken turn: recognize the
// committed utterance, generate a reply, synthesize it. Each stage is a
// separate call so the session layer can interleave events between them.
type ConversationService struct {
	speechToText repositories.SpeechToText
	textToSpeech repositories.TextToSpeech
	llm          repositories.LargeLanguageModel
	audioConfig  repositories.AudioConfig
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	llm repositories.LargeLanguageModel,
	audioConfig repositories.AudioConfig,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		speechToText: stt,
		textToSpeech: tts,
		llm:          llm,
		audioConfig:  audioConfig,
		logger:       logger,
	}
}

// Transcribe recognizes one complete utterance.
func (s *ConversationService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("utterance is empty")
	}

	transcript, err := s.speechToText.TranscribeAudio(ctx, audio, s.audioConfig)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	s.logger.Info("Transcription completed",
		zap.Int("audioBytes", len(audio)),
		zap.String("transcript", transcript))

	return transcript, nil
}

// NewChatSession starts a fresh in-memory conversation.
func (s *ConversationService) NewChatSession(ctx context.Context) (repositories.ChatSession, error) {
	chat, err := s.llm.GenerateChat(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return chat, nil
}

// Reply generates the assistant reply to transcript within chat,
// extending the conversation history.
func (s *ConversationService) Reply(ctx context.Context, chat repositories.ChatSession, transcript string) (string, error) {
	reply, err := chat.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: transcript,
	})
	if err != nil {
		return "", fmt.Errorf("reply generation failed: %w", err)
	}

	s.logger.Info("Reply generated",
		zap.String("transcript", transcript),
		zap.String("reply", reply.Content))

	return reply.Content, nil
}

// Synthesize streams reply audio chunks for text.
func (s *ConversationService) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	audioChan, err := s.textToSpeech.ConvertTextToSpeech(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	return audioChan, nil
}

package llm

import (
	"context"
	"fmt"

	"github.com/voxstream/voxstream/domain/repositories"
)

// MockLLM is a deterministic chat model for development and tests.
type MockLLM struct{}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates the mock chat model.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// GenerateChat creates a mock chat session seeded with history.
func (m *MockLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	return &mockChatSession{history: history}, nil
}

type mockChatSession struct {
	history []repositories.ChatMessage
}

// MockReplyTo returns the exact reply the mock session produces for a
// user message, so tests can assert on it.
func MockReplyTo(content string) string {
	if content == "" {
		return "Hello! What would you like to talk about?"
	}
	return fmt.Sprintf("You said: %s", content)
}

func (s *mockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	s.history = append(s.history, message)

	reply := repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: MockReplyTo(message.Content),
	}
	s.history = append(s.history, reply)

	return reply, nil
}

func (s *mockChatSession) History() ([]repositories.ChatMessage, error) {
	return s.history, nil
}

package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxstream/voxstream/domain/repositories"
)

// geminiChatSession implements ChatSession over the Gemini API, holding
// the conversation history in memory for the lifetime of the session.
type geminiChatSession struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeoutSeconds  int
	history         []*genai.Content
}

func newGeminiChatSession(client *genai.Client, config GeminiConfig, logger *zap.Logger, history []repositories.ChatMessage) *geminiChatSession {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}
	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
	}
	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &geminiChatSession{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeoutSeconds:  timeoutSeconds,
		history:         toGeminiHistory(history),
	}
}

// SendMessage sends one user message and returns the assistant reply,
// appending both to the session history. Generation failures degrade to
// a canned fallback reply rather than an error so the voice turn still
// completes.
func (s *geminiChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	var contents []*genai.Content
	contents = append(contents, genai.NewContentFromText(voiceSystemPrompt, genai.RoleUser))
	contents = append(contents, s.history...)

	userContent := genai.NewContentFromText(message.Content, genai.RoleUser)
	contents = append(contents, userContent)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.temperature),
		TopP:            genai.Ptr(s.topP),
		TopK:            genai.Ptr(s.topK),
		MaxOutputTokens: int32(s.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSeconds)*time.Second)
	defer cancel()

	response, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		s.logger.Error("Failed to generate reply", zap.Error(err))
		return s.fallbackReply(), nil
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini returned no content")
		return s.fallbackReply(), nil
	}

	var responseText string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}
	if responseText == "" {
		s.logger.Warn("Gemini returned empty reply text")
		return s.fallbackReply(), nil
	}

	s.history = append(s.history, userContent,
		genai.NewContentFromText(responseText, genai.RoleModel))

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: responseText,
	}, nil
}

// History returns the conversation so far.
func (s *geminiChatSession) History() ([]repositories.ChatMessage, error) {
	return fromGeminiHistory(s.history), nil
}

func (s *geminiChatSession) fallbackReply() repositories.ChatMessage {
	index := int(time.Now().UnixNano()) % len(fallbackReplies)
	reply := fallbackReplies[index]

	s.history = append(s.history, genai.NewContentFromText(reply, genai.RoleModel))

	return repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: reply,
	}
}

func toGeminiHistory(messages []repositories.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == repositories.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func fromGeminiHistory(contents []*genai.Content) []repositories.ChatMessage {
	var messages []repositories.ChatMessage
	for _, content := range contents {
		role := repositories.UserRole
		if content.Role == genai.RoleModel {
			role = repositories.AssistantRole
		}

		var text string
		for _, part := range content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		if text != "" {
			messages = append(messages, repositories.ChatMessage{Role: role, Content: text})
		}
	}
	return messages
}

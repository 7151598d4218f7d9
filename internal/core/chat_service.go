package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"gwi.com/doc-insights/internal/store"
	"gwi.com/doc-insights/internal/utils"
)

const (
	// ChatContextLimit bounds how much of the document is embedded in each chat request.
	ChatContextLimit = 40000

	FallbackReply = "I'm sorry, I couldn't process that request."

	chatContextPrefix = "You are an expert document assistant. Base your answers ONLY on the following document context: \n\n "
	chatAcknowledge   = "I have analyzed the document. How can I help you today?"
)

// ErrChatFailure wraps any failure of the model call for a chat turn.
var ErrChatFailure = errors.New("chat request failed")

type ChatService struct {
	llm        ContentGenerator
	maxHistory int
	logger     *zap.Logger
}

// NewChatService returns a chat client that sends at most maxHistory prior
// messages per request. Zero disables the cap.
func NewChatService(llm ContentGenerator, maxHistory int, logger *zap.Logger) *ChatService {
	return &ChatService{llm: llm, maxHistory: maxHistory, logger: logger}
}

// Ask sends one turn. The service keeps no state between calls; the whole
// conversation is rebuilt from history every time.
func (s *ChatService) Ask(ctx context.Context, documentText string, history []store.ChatMessage, userMessage string) (string, error) {
	contents := BuildConversation(documentText, history, s.maxHistory)

	reply, err := s.llm.GenerateChat(ctx, contents, userMessage)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatFailure, err)
	}
	if strings.TrimSpace(reply) == "" {
		s.logger.Warn("Gemini chat reply was empty, using fallback")
		return FallbackReply, nil
	}
	return reply, nil
}

// BuildConversation lays out the history sent ahead of the new user message:
// the document context turn, the fixed acknowledgement, then the most recent
// prior messages in order.
func BuildConversation(documentText string, history []store.ChatMessage, maxHistory int) []*genai.Content {
	window := RecentHistory(history, maxHistory)

	contents := make([]*genai.Content, 0, len(window)+2)
	contents = append(contents,
		&genai.Content{
			Role:  string(store.RoleUser),
			Parts: []genai.Part{genai.Text(chatContextPrefix + utils.Truncate(documentText, ChatContextLimit))},
		},
		&genai.Content{
			Role:  string(store.RoleModel),
			Parts: []genai.Part{genai.Text(chatAcknowledge)},
		},
	)
	for _, msg := range window {
		contents = append(contents, &genai.Content{
			Role:  string(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}
	return contents
}

// RecentHistory keeps the last limit answered messages (all of them when limit
// is zero) and drops leading model messages so the window opens on a user
// turn, right after the acknowledgement. A user message that never got a reply
// is left out, otherwise two user turns would reach the model back to back.
func RecentHistory(history []store.ChatMessage, limit int) []store.ChatMessage {
	window := answered(history)
	if limit > 0 && len(window) > limit {
		window = window[len(window)-limit:]
	}
	for len(window) > 0 && window[0].Role != store.RoleUser {
		window = window[1:]
	}
	return window
}

func answered(history []store.ChatMessage) []store.ChatMessage {
	out := make([]store.ChatMessage, 0, len(history))
	for i, msg := range history {
		if msg.Role == store.RoleUser && (i+1 == len(history) || history[i+1].Role != store.RoleModel) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

package core

import (
	"context"
	"sync"

	"github.com/google/generative-ai-go/genai"
)

const validPayload = `{
  "summary": "The team met. They agreed on a plan. Work starts Monday.",
  "topics": ["planning", "schedule"],
  "entities": {
    "people": ["Ada Lovelace"],
    "organizations": ["Acme Corp"],
    "dates": ["Monday"],
    "locations": []
  },
  "tone": "Professional",
  "action_items": ["Send the agenda"],
  "sentiment_score": 72
}`

type fakeGenerator struct {
	mu sync.Mutex

	structuredFn func(ctx context.Context, prompt string) (string, error)
	chatFn       func(ctx context.Context, history []*genai.Content, message string) (string, error)

	prompts   []string
	schemas   []*genai.Schema
	histories [][]*genai.Content
	messages  []string
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.schemas = append(f.schemas, schema)
	fn := f.structuredFn
	f.mu.Unlock()

	if fn == nil {
		return validPayload, nil
	}
	return fn(ctx, prompt)
}

func (f *fakeGenerator) GenerateChat(ctx context.Context, history []*genai.Content, message string) (string, error) {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.messages = append(f.messages, message)
	fn := f.chatFn
	f.mu.Unlock()

	if fn == nil {
		return "It is about planning.", nil
	}
	return fn(ctx, history, message)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeGenerator) lastHistory() []*genai.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.histories) == 0 {
		return nil
	}
	return f.histories[len(f.histories)-1]
}

func contentText(c *genai.Content) string {
	var out string
	for _, p := range c.Parts {
		if t, ok := p.(genai.Text); ok {
			out += string(t)
		}
	}
	return out
}

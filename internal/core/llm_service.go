package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ContentGenerator is the slice of the Gemini API the services depend on.
type ContentGenerator interface {
	// GenerateStructured sends a single prompt and returns the raw JSON text the
	// model produced under schema.
	GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	// GenerateChat replays history and sends message as the next user turn. An
	// empty string means the model returned no usable text.
	GenerateChat(ctx context.Context, history []*genai.Content, message string) (string, error)
}

type LLMService struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	retry   retryPolicy
	logger  *zap.Logger
}

type LLMOptions struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
}

func NewLLMService(ctx context.Context, opts LLMOptions, logger *zap.Logger) (*LLMService, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:  client,
		model:   opts.Model,
		limiter: newRequestLimiter(opts.RequestsPerMinute),
		retry:   defaultRetryPolicy,
		logger:  logger,
	}, nil
}

func newRequestLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

func (s *LLMService) GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	model := s.client.GenerativeModel(s.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schema

	var resp *genai.GenerateContentResponse
	err := s.call(ctx, "generate_structured", func(ctx context.Context) error {
		var err error
		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("gemini structured request failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini returned no structured content")
	}
	return text, nil
}

func (s *LLMService) GenerateChat(ctx context.Context, history []*genai.Content, message string) (string, error) {
	model := s.client.GenerativeModel(s.model)

	var resp *genai.GenerateContentResponse
	err := s.call(ctx, "generate_chat", func(ctx context.Context) error {
		// A fresh session per attempt so a failed attempt cannot leak into history.
		chatSession := model.StartChat()
		chatSession.History = history

		var err error
		resp, err = chatSession.SendMessage(ctx, genai.Text(message))
		return err
	})
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			s.logger.Warn("Gemini blocked the chat response", zap.Error(err))
			return "", nil
		}
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	return responseText(resp), nil
}

// call waits for the rate limiter and runs fn under the retry policy.
func (s *LLMService) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return s.retry.run(ctx, op, s.logger, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(text.String())
}

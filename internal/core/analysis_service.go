package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"gwi.com/doc-insights/internal/store"
	"gwi.com/doc-insights/internal/utils"
)

const (
	// AnalysisInputLimit bounds how much of a document is sent for analysis.
	AnalysisInputLimit = 30000
	maxTopics          = 5

	analysisPromptTemplate = `Analyze the following document text and provide a structured JSON response.

Document Text:
%s

Instructions:
1. Summarize the content in exactly 3 meaningful sentences.
2. List up to 5 main topics/themes.
3. Identify key entities (people, organizations, dates, locations).
4. Determine the overall tone (e.g., Professional, Urgent, Informative).
5. Extract potential action items or next steps.
6. Assign a sentiment score from 0 (very negative) to 100 (very positive).`
)

// ErrAnalysisFailure covers every way an analysis can fail: the model call
// itself, or a response that does not match the schema.
var ErrAnalysisFailure = errors.New("document analysis failed")

type AnalysisService struct {
	llm    ContentGenerator
	logger *zap.Logger
}

func NewAnalysisService(llm ContentGenerator, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{llm: llm, logger: logger}
}

// Analyze asks the model for a structured analysis of rawText. It returns
// either a fully populated result or an error wrapping ErrAnalysisFailure.
func (s *AnalysisService) Analyze(ctx context.Context, rawText string) (*store.AnalysisResult, error) {
	text := utils.Truncate(rawText, AnalysisInputLimit)
	if len(text) < len(rawText) {
		s.logger.Debug("Truncated document for analysis",
			zap.Int("chars", utils.CountChars(rawText)),
			zap.Int("limit", AnalysisInputLimit))
	}

	payload, err := s.llm.GenerateStructured(ctx, BuildAnalysisPrompt(text), AnalysisSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailure, err)
	}

	result, err := ParseAnalysis(payload)
	if err != nil {
		s.logger.Warn("Rejected malformed analysis response", zap.Error(err), zap.Int("payload_bytes", len(payload)))
		return nil, err
	}
	if len(result.Topics) > maxTopics {
		s.logger.Warn("Model returned too many topics, keeping the first five", zap.Int("topics", len(result.Topics)))
		result.Topics = result.Topics[:maxTopics]
	}
	return result, nil
}

func BuildAnalysisPrompt(text string) string {
	return fmt.Sprintf(analysisPromptTemplate, text)
}

// AnalysisSchema is the response schema the model must follow.
func AnalysisSchema() *genai.Schema {
	stringList := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: description,
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {Type: genai.TypeString, Description: "Exactly three sentences."},
			"topics":  stringList("Up to five main topics or themes."),
			"entities": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"people":        stringList("People mentioned."),
					"organizations": stringList("Organizations mentioned."),
					"dates":         stringList("Dates mentioned."),
					"locations":     stringList("Locations mentioned."),
				},
				Required: []string{"people", "organizations", "dates", "locations"},
			},
			"tone":         {Type: genai.TypeString, Description: "Overall tone, e.g. Professional, Urgent, Informative."},
			"action_items": stringList("Action items or next steps."),
			"sentiment_score": {
				Type:        genai.TypeInteger,
				Description: "0 (very negative) to 100 (very positive).",
			},
		},
		Required: []string{"summary", "topics", "entities", "tone", "action_items", "sentiment_score"},
	}
}

type rawEntities struct {
	People        *[]string `json:"people"`
	Organizations *[]string `json:"organizations"`
	Dates         *[]string `json:"dates"`
	Locations     *[]string `json:"locations"`
}

type rawAnalysis struct {
	Summary        *string      `json:"summary"`
	Topics         *[]string    `json:"topics"`
	Entities       *rawEntities `json:"entities"`
	Tone           *string      `json:"tone"`
	ActionItems    *[]string    `json:"action_items"`
	SentimentScore *float64     `json:"sentiment_score"`
}

// ParseAnalysis decodes a model payload strictly. Missing or null fields, wrong
// types and out-of-range sentiment scores are all rejected.
func ParseAnalysis(payload string) (*store.AnalysisResult, error) {
	payload = stripCodeFence(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty response", ErrAnalysisFailure)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrAnalysisFailure, err)
	}

	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("summary", raw.Summary != nil)
	check("topics", raw.Topics != nil)
	check("entities", raw.Entities != nil)
	if raw.Entities != nil {
		check("entities.people", raw.Entities.People != nil)
		check("entities.organizations", raw.Entities.Organizations != nil)
		check("entities.dates", raw.Entities.Dates != nil)
		check("entities.locations", raw.Entities.Locations != nil)
	}
	check("tone", raw.Tone != nil)
	check("action_items", raw.ActionItems != nil)
	check("sentiment_score", raw.SentimentScore != nil)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrAnalysisFailure, strings.Join(missing, ", "))
	}

	score := *raw.SentimentScore
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: sentiment_score %v outside [0, 100]", ErrAnalysisFailure, score)
	}

	return &store.AnalysisResult{
		Summary: *raw.Summary,
		Topics:  *raw.Topics,
		Entities: store.Entities{
			People:        *raw.Entities.People,
			Organizations: *raw.Entities.Organizations,
			Dates:         *raw.Entities.Dates,
			Locations:     *raw.Entities.Locations,
		},
		Tone:           *raw.Tone,
		ActionItems:    *raw.ActionItems,
		SentimentScore: int(math.Round(score)),
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

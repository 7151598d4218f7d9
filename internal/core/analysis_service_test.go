package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnalyze_ParsesResult(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewAnalysisService(gen, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "Meeting notes: the team met on Monday.")
	require.NoError(t, err)

	assert.Equal(t, "The team met. They agreed on a plan. Work starts Monday.", result.Summary)
	assert.Equal(t, []string{"planning", "schedule"}, result.Topics)
	assert.Equal(t, []string{"Ada Lovelace"}, result.Entities.People)
	assert.Equal(t, []string{"Acme Corp"}, result.Entities.Organizations)
	assert.Equal(t, []string{"Monday"}, result.Entities.Dates)
	assert.NotNil(t, result.Entities.Locations)
	assert.Empty(t, result.Entities.Locations)
	assert.Equal(t, "Professional", result.Tone)
	assert.Equal(t, []string{"Send the agenda"}, result.ActionItems)
	assert.Equal(t, 72, result.SentimentScore)

	assert.Contains(t, gen.lastPrompt(), "Meeting notes: the team met on Monday.")
	assert.Contains(t, gen.lastPrompt(), "exactly 3 meaningful sentences")
	require.Len(t, gen.schemas, 1)
	assert.ElementsMatch(t,
		[]string{"summary", "topics", "entities", "tone", "action_items", "sentiment_score"},
		gen.schemas[0].Required)
}

func TestAnalyze_TruncatesInput(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewAnalysisService(gen, zap.NewNop())

	doc := strings.Repeat("a", AnalysisInputLimit) + "TAIL"
	_, err := svc.Analyze(context.Background(), doc)
	require.NoError(t, err)

	sent := BuildAnalysisPrompt(strings.Repeat("a", AnalysisInputLimit))
	assert.Equal(t, sent, gen.lastPrompt())
	assert.NotContains(t, gen.lastPrompt(), "TAIL")
}

func TestAnalyze_ServiceError(t *testing.T) {
	gen := &fakeGenerator{structuredFn: func(context.Context, string) (string, error) {
		return "", errors.New("connection reset")
	}}
	svc := NewAnalysisService(gen, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "text")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAnalysisFailure)
	assert.ErrorContains(t, err, "connection reset")
}

func TestAnalyze_TrimsExtraTopics(t *testing.T) {
	payload := strings.Replace(validPayload, `["planning", "schedule"]`, `["a","b","c","d","e","f","g"]`, 1)
	gen := &fakeGenerator{structuredFn: func(context.Context, string) (string, error) { return payload, nil }}
	svc := NewAnalysisService(gen, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, result.Topics)
}

func TestParseAnalysis_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"empty", "", "empty response"},
		{"empty object", "{}", "missing fields"},
		{"not json", "The document is about planning.", "malformed response"},
		{"truncated json", `{"summary": "One. Two.`, "malformed response"},
		{"missing locations", strings.Replace(validPayload, `,
    "locations": []`, "", 1), "entities.locations"},
		{"null topics", strings.Replace(validPayload, `["planning", "schedule"]`, "null", 1), "topics"},
		{"missing entities", `{"summary":"a","topics":[],"tone":"t","action_items":[],"sentiment_score":5}`, "entities"},
		{"wrong type", strings.Replace(validPayload, `"sentiment_score": 72`, `"sentiment_score": "high"`, 1), "malformed response"},
		{"score above range", strings.Replace(validPayload, `"sentiment_score": 72`, `"sentiment_score": 140`, 1), "outside [0, 100]"},
		{"score below range", strings.Replace(validPayload, `"sentiment_score": 72`, `"sentiment_score": -1`, 1), "outside [0, 100]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseAnalysis(tt.payload)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAnalysisFailure)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAnalysis_Accepts(t *testing.T) {
	t.Run("code fence", func(t *testing.T) {
		result, err := ParseAnalysis("```json\n" + validPayload + "\n```")
		require.NoError(t, err)
		assert.Equal(t, 72, result.SentimentScore)
	})
	t.Run("boundaries", func(t *testing.T) {
		for _, score := range []string{"0", "100"} {
			result, err := ParseAnalysis(strings.Replace(validPayload, "72", score, 1))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.SentimentScore, 0)
			assert.LessOrEqual(t, result.SentimentScore, 100)
		}
	})
	t.Run("fractional score rounds", func(t *testing.T) {
		result, err := ParseAnalysis(strings.Replace(validPayload, "72", "72.6", 1))
		require.NoError(t, err)
		assert.Equal(t, 73, result.SentimentScore)
	})
}

func TestAnalysisSchema_EntitiesRequired(t *testing.T) {
	schema := AnalysisSchema()
	assert.Equal(t, genai.TypeObject, schema.Type)

	entities := schema.Properties["entities"]
	require.NotNil(t, entities)
	assert.ElementsMatch(t, []string{"people", "organizations", "dates", "locations"}, entities.Required)
	for _, name := range entities.Required {
		require.Contains(t, entities.Properties, name)
		assert.Equal(t, genai.TypeArray, entities.Properties[name].Type)
	}
}

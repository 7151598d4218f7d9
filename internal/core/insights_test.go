package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gwi.com/doc-insights/internal/store"
)

func sessionWithScore(score int) *store.DocSession {
	return &store.DocSession{
		ID:       "sess-1",
		Metadata: store.DocumentMetadata{Name: "plan.md", Size: 3584, WordCount: 420},
		Analysis: &store.AnalysisResult{
			Summary: "A. B. C.",
			Topics:  []string{"roadmap", "hiring"},
			Entities: store.Entities{
				People:        []string{"Grace", "Alan"},
				Organizations: []string{"Initech"},
				Dates:         []string{},
				Locations:     []string{"Berlin", "Lisbon", "Oslo"},
			},
			Tone:           "Urgent",
			ActionItems:    []string{"Hire", "Ship", "Review"},
			SentimentScore: score,
		},
	}
}

func TestBuildInsights(t *testing.T) {
	in := BuildInsights(sessionWithScore(64))

	assert.Equal(t, "sess-1", in.SessionID)
	assert.Equal(t, int64(4), in.SizeKB)
	assert.Equal(t, 420, in.Words)
	assert.Equal(t, 6, in.EntityTotal)
	assert.Equal(t, 2, in.TopicCount)
	assert.Equal(t, 3, in.ActionCount)
	assert.Equal(t, []EntityCount{
		{Name: "People", Count: 2},
		{Name: "Orgs", Count: 1},
		{Name: "Locs", Count: 3},
		{Name: "Dates", Count: 0},
	}, in.EntityCounts)
	assert.Equal(t, SentimentSplit{Score: 64, Remaining: 36, Label: "positive"}, in.Sentiment)
	assert.Equal(t, "Urgent", in.Tone)
}

func TestBuildInsights_SentimentLabel(t *testing.T) {
	assert.Equal(t, "cautious", BuildInsights(sessionWithScore(50)).Sentiment.Label)
	assert.Equal(t, "positive", BuildInsights(sessionWithScore(51)).Sentiment.Label)
	assert.Equal(t, "cautious", BuildInsights(sessionWithScore(0)).Sentiment.Label)
	assert.Equal(t, 0, BuildInsights(sessionWithScore(100)).Sentiment.Remaining)
}

package core

import (
	"math"
	"time"

	"gwi.com/doc-insights/internal/store"
)

type EntityCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type SentimentSplit struct {
	Score     int    `json:"score"`
	Remaining int    `json:"remaining"`
	Label     string `json:"label"`
}

// Insights is the dashboard read model derived from a ready session.
type Insights struct {
	SessionID    string         `json:"session_id"`
	Name         string         `json:"name"`
	SizeKB       int64          `json:"size_kb"`
	Words        int            `json:"words"`
	EntityTotal  int            `json:"entity_total"`
	TopicCount   int            `json:"topic_count"`
	ActionCount  int            `json:"action_count"`
	EntityCounts []EntityCount  `json:"entity_counts"`
	Sentiment    SentimentSplit `json:"sentiment"`
	Summary      string         `json:"summary"`
	Topics       []string       `json:"topics"`
	Tone         string         `json:"tone"`
	ActionItems  []string       `json:"action_items"`
}

// BuildInsights summarises a ready session for the dashboard.
func BuildInsights(sess *store.DocSession) Insights {
	a := sess.Analysis
	counts := []EntityCount{
		{Name: "People", Count: len(a.Entities.People)},
		{Name: "Orgs", Count: len(a.Entities.Organizations)},
		{Name: "Locs", Count: len(a.Entities.Locations)},
		{Name: "Dates", Count: len(a.Entities.Dates)},
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}

	label := "cautious"
	if a.SentimentScore > 50 {
		label = "positive"
	}

	return Insights{
		SessionID:    sess.ID,
		Name:         sess.Metadata.Name,
		SizeKB:       int64(math.Round(float64(sess.Metadata.Size) / 1024)),
		Words:        sess.Metadata.WordCount,
		EntityTotal:  total,
		TopicCount:   len(a.Topics),
		ActionCount:  len(a.ActionItems),
		EntityCounts: counts,
		Sentiment: SentimentSplit{
			Score:     a.SentimentScore,
			Remaining: 100 - a.SentimentScore,
			Label:     label,
		},
		Summary:     a.Summary,
		Topics:      a.Topics,
		Tone:        a.Tone,
		ActionItems: a.ActionItems,
	}
}

// SessionExport is the downloadable form of a session, raw text included.
type SessionExport struct {
	ID         string                 `json:"id"`
	ExportedAt time.Time              `json:"exported_at"`
	Metadata   store.DocumentMetadata `json:"metadata"`
	Analysis   *store.AnalysisResult  `json:"analysis"`
	History    []store.ChatMessage    `json:"history"`
	Content    string                 `json:"content"`
}

func (s *DocumentService) Insights() (Insights, error) {
	sess, err := s.sessions.Session()
	if err != nil {
		return Insights{}, err
	}
	return BuildInsights(sess), nil
}

func (s *DocumentService) Export() (SessionExport, error) {
	sess, err := s.sessions.Session()
	if err != nil {
		return SessionExport{}, err
	}
	return SessionExport{
		ID:         sess.ID,
		ExportedAt: s.now(),
		Metadata:   sess.Metadata,
		Analysis:   sess.Analysis,
		History:    sess.History,
		Content:    sess.Content,
	}, nil
}

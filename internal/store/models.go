package store

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type SessionState string

const (
	StateEmpty     SessionState = "empty"
	StateAnalyzing SessionState = "analyzing"
	StateReady     SessionState = "ready"
)

// DocumentMetadata is computed once at upload time and never mutated.
type DocumentMetadata struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"last_modified"`
	WordCount    int       `json:"word_count"`
	CharCount    int       `json:"char_count"`
}

type Entities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Locations     []string `json:"locations"`
}

type AnalysisResult struct {
	Summary        string   `json:"summary"`
	Topics         []string `json:"topics"`
	Entities       Entities `json:"entities"`
	Tone           string   `json:"tone"`
	ActionItems    []string `json:"action_items"`
	SentimentScore int      `json:"sentiment_score"` // 0 very negative, 100 very positive
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DocSession is the aggregate for the one uploaded document. It only exists
// once analysis has succeeded.
type DocSession struct {
	ID       string           `json:"id"`
	Metadata DocumentMetadata `json:"metadata"`
	Content  string           `json:"-"`
	Analysis *AnalysisResult  `json:"analysis,omitempty"`
	History  []ChatMessage    `json:"history"`
}

// AnalysisFailure describes the last failed analysis attempt. It is kept so the
// document can be re-analysed without another upload.
type AnalysisFailure struct {
	SessionID string           `json:"session_id"`
	Metadata  DocumentMetadata `json:"metadata"`
	Error     string           `json:"error"`
	FailedAt  time.Time        `json:"failed_at"`
}

// SessionSnapshot is a read-only view of the store handed to callers.
type SessionSnapshot struct {
	State       SessionState      `json:"state"`
	SessionID   string            `json:"session_id,omitempty"`
	Progress    int               `json:"progress"`
	Metadata    *DocumentMetadata `json:"metadata,omitempty"`
	Session     *DocSession       `json:"session,omitempty"`
	LastFailure *AnalysisFailure  `json:"last_failure,omitempty"`
	ChatBusy    bool              `json:"chat_busy"`
}

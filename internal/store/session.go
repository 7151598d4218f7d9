package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoSession       = errors.New("no document session")
	ErrNotReady        = errors.New("session is not ready")
	ErrTurnInProgress  = errors.New("a chat turn is already in progress")
	ErrStaleGeneration = errors.New("session was superseded")
	ErrNothingToRetry  = errors.New("no failed analysis to retry")
	ErrInvalidMessage  = errors.New("invalid chat message")
	ErrMissingAnalysis = errors.New("analysis result is required")
)

// Job is the work handed to the analysis step for one generation of the session.
type Job struct {
	Generation uint64
	SessionID  string
	Metadata   DocumentMetadata
	Content    string
}

// Turn is one in-flight chat exchange. History is the transcript as it was
// before the turn started.
type Turn struct {
	ID         uint64
	Generation uint64
	Content    string
	History    []ChatMessage
}

type draft struct {
	id       string
	metadata DocumentMetadata
	content  string
}

type turnSlot struct {
	id     uint64
	cancel context.CancelFunc
}

// SessionStore owns the single in-memory document session. Every mutation goes
// through a transition method; asynchronous results carry the generation they
// were started under and are dropped once that generation is superseded.
type SessionStore struct {
	mu sync.Mutex

	base       context.Context
	now        func() time.Time
	state      SessionState
	generation uint64
	cancel     context.CancelFunc

	draft       *draft
	session     *DocSession
	lastFailure *AnalysisFailure

	turn    *turnSlot
	turnSeq uint64
}

// NewSessionStore returns an empty store. Contexts handed out for in-flight
// work derive from base, so cancelling base aborts everything.
func NewSessionStore(base context.Context) *SessionStore {
	if base == nil {
		base = context.Background()
	}
	return &SessionStore{
		base:  base,
		now:   time.Now,
		state: StateEmpty,
	}
}

// Begin moves the store to Analyzing for a freshly uploaded document, replacing
// whatever was there before and cancelling its outstanding calls.
func (s *SessionStore) Begin(sessionID string, metadata DocumentMetadata, content string) (context.Context, Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.cancelInFlightLocked()
	s.session = nil
	s.lastFailure = nil
	s.draft = &draft{id: sessionID, metadata: metadata, content: content}
	return s.startAnalysisLocked()
}

// Retry re-enters Analyzing with the document kept from the last failed analysis.
func (s *SessionStore) Retry() (context.Context, Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEmpty || s.draft == nil {
		return nil, Job{}, ErrNothingToRetry
	}
	s.lastFailure = nil
	ctx, job := s.startAnalysisLocked()
	return ctx, job, nil
}

func (s *SessionStore) startAnalysisLocked() (context.Context, Job) {
	s.generation++
	s.state = StateAnalyzing

	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	return ctx, Job{
		Generation: s.generation,
		SessionID:  s.draft.id,
		Metadata:   s.draft.metadata,
		Content:    s.draft.content,
	}
}

// Complete attaches the analysis and materialises the session (Analyzing -> Ready).
func (s *SessionStore) Complete(generation uint64, analysis *AnalysisResult) error {
	if analysis == nil {
		return ErrMissingAnalysis
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAnalyzingLocked(generation); err != nil {
		return err
	}
	s.releaseAnalysisLocked()
	s.session = &DocSession{
		ID:       s.draft.id,
		Metadata: s.draft.metadata,
		Content:  s.draft.content,
		Analysis: analysis,
		History:  []ChatMessage{},
	}
	s.draft = nil
	s.state = StateReady
	return nil
}

// Fail records a failed analysis (Analyzing -> Empty). The document is kept so
// Retry can run the analysis again.
func (s *SessionStore) Fail(generation uint64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAnalyzingLocked(generation); err != nil {
		return err
	}
	s.releaseAnalysisLocked()
	msg := "analysis failed"
	if cause != nil {
		msg = cause.Error()
	}
	s.lastFailure = &AnalysisFailure{
		SessionID: s.draft.id,
		Metadata:  s.draft.metadata,
		Error:     msg,
		FailedAt:  s.now(),
	}
	s.state = StateEmpty
	return nil
}

func (s *SessionStore) checkAnalyzingLocked(generation uint64) error {
	if generation != s.generation || s.state != StateAnalyzing || s.draft == nil {
		return fmt.Errorf("%w: generation %d, current %d", ErrStaleGeneration, generation, s.generation)
	}
	return nil
}

func (s *SessionStore) releaseAnalysisLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Reset drops everything and returns to Empty, cancelling in-flight calls.
func (s *SessionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelInFlightLocked()
	s.generation++
	s.state = StateEmpty
	s.draft = nil
	s.session = nil
	s.lastFailure = nil
}

func (s *SessionStore) cancelInFlightLocked() {
	s.releaseAnalysisLocked()
	if s.turn != nil {
		s.turn.cancel()
		s.turn = nil
	}
}

// BeginTurn claims the chat slot. Only one turn may be in flight at a time.
func (s *SessionStore) BeginTurn() (context.Context, Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.session == nil {
		return nil, Turn{}, ErrNotReady
	}
	if s.turn != nil {
		return nil, Turn{}, ErrTurnInProgress
	}

	s.turnSeq++
	ctx, cancel := context.WithCancel(s.base)
	s.turn = &turnSlot{id: s.turnSeq, cancel: cancel}
	return ctx, Turn{
		ID:         s.turnSeq,
		Generation: s.generation,
		Content:    s.session.Content,
		History:    s.session.History,
	}, nil
}

// EndTurn releases the chat slot taken by BeginTurn. Ending a turn that was
// already superseded is a no-op.
func (s *SessionStore) EndTurn(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn != nil && s.turn.id == turn.ID {
		s.turn.cancel()
		s.turn = nil
	}
}

// AppendMessage adds msg to the end of the history. The history slice is
// replaced, not grown in place, so snapshots already handed out stay intact.
func (s *SessionStore) AppendMessage(generation uint64, msg ChatMessage) (ChatMessage, error) {
	if msg.Role != RoleUser && msg.Role != RoleModel {
		return ChatMessage{}, fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.session == nil {
		return ChatMessage{}, ErrNotReady
	}
	if generation != s.generation {
		return ChatMessage{}, fmt.Errorf("%w: generation %d, current %d", ErrStaleGeneration, generation, s.generation)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	prev := s.session.History
	if n := len(prev); n > 0 && msg.Timestamp.Before(prev[n-1].Timestamp) {
		msg.Timestamp = prev[n-1].Timestamp
	}

	history := make([]ChatMessage, len(prev), len(prev)+1)
	copy(history, prev)
	history = append(history, msg)

	next := *s.session
	next.History = history
	s.session = &next
	return msg, nil
}

// Content returns the raw text of the current document, whether it is still
// being analysed or ready.
func (s *SessionStore) Content() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.session != nil:
		return s.session.Content, nil
	case s.state == StateAnalyzing && s.draft != nil:
		return s.draft.content, nil
	}
	return "", ErrNoSession
}

// Session returns the ready session.
func (s *SessionStore) Session() (*DocSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.session == nil {
		return nil, ErrNotReady
	}
	return s.session, nil
}

func (s *SessionStore) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		State:    s.state,
		ChatBusy: s.turn != nil,
	}
	switch s.state {
	case StateAnalyzing:
		md := s.draft.metadata
		snap.SessionID = s.draft.id
		snap.Metadata = &md
		snap.Progress = 30
	case StateReady:
		md := s.session.Metadata
		snap.SessionID = s.session.ID
		snap.Metadata = &md
		snap.Session = s.session
		snap.Progress = 100
	}
	if s.lastFailure != nil {
		failure := *s.lastFailure
		snap.LastFailure = &failure
	}
	return snap
}

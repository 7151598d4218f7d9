package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gwi.com/doc-insights/internal/ingest"
	"gwi.com/doc-insights/internal/store"
)

var ErrEmptyMessage = errors.New("message text cannot be empty")

// UploadInput carries an uploaded file and the attributes the client reported.
type UploadInput struct {
	Name         string
	Size         int64
	MIMEType     string
	LastModified time.Time
	Body         io.Reader
}

type DocumentOptions struct {
	AnalysisTimeout time.Duration
	ChatTimeout     time.Duration
	MaxUploadBytes  int64
}

// DocumentService drives the session through upload, analysis and chat.
type DocumentService struct {
	sessions *store.SessionStore
	analysis *AnalysisService
	chat     *ChatService
	opts     DocumentOptions
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewDocumentService(sessions *store.SessionStore, analysis *AnalysisService, chat *ChatService, opts DocumentOptions, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		sessions: sessions,
		analysis: analysis,
		chat:     chat,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload reads the file, computes its metadata and starts the analysis in the
// background. The returned snapshot is in the Analyzing state. A file that
// cannot be read leaves the store Empty.
func (s *DocumentService) Upload(in UploadInput) (store.SessionSnapshot, error) {
	body := &countingReader{r: in.Body}
	if in.Body == nil {
		body.r = strings.NewReader("")
	}
	text, err := ingest.ReadDocument(in.Name, in.MIMEType, body, s.opts.MaxUploadBytes)
	if err != nil {
		s.sessions.Reset()
		s.logger.Warn("Failed to read uploaded document", zap.String("name", in.Name), zap.Error(err))
		return store.SessionSnapshot{}, err
	}

	size := in.Size
	if size <= 0 {
		size = body.n
	}
	lastModified := in.LastModified
	if lastModified.IsZero() {
		lastModified = s.now()
	}
	metadata := ingest.ExtractMetadata(in.Name, size, in.MIMEType, lastModified, text)

	ctx, job := s.sessions.Begin(uuid.NewString(), metadata, text)
	s.logger.Info("Document uploaded, starting analysis",
		zap.String("session_id", job.SessionID),
		zap.String("name", metadata.Name),
		zap.Int("words", metadata.WordCount),
		zap.Int("chars", metadata.CharCount))
	snap := s.sessions.Snapshot()
	s.startAnalysis(ctx, job)

	return snap, nil
}

// Retry re-runs the analysis for a document whose last analysis failed.
func (s *DocumentService) Retry() (store.SessionSnapshot, error) {
	ctx, job, err := s.sessions.Retry()
	if err != nil {
		return store.SessionSnapshot{}, err
	}
	s.logger.Info("Retrying analysis", zap.String("session_id", job.SessionID))
	snap := s.sessions.Snapshot()
	s.startAnalysis(ctx, job)
	return snap, nil
}

func (s *DocumentService) startAnalysis(ctx context.Context, job store.Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAnalysis(ctx, job)
	}()
}

func (s *DocumentService) runAnalysis(ctx context.Context, job store.Job) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.AnalysisTimeout)
	defer cancel()

	started := s.now()
	result, err := s.analysis.Analyze(ctx, job.Content)
	log := s.logger.With(zap.String("session_id", job.SessionID), zap.Duration("elapsed", s.now().Sub(started)))

	if err != nil {
		if failErr := s.sessions.Fail(job.Generation, err); failErr != nil {
			log.Debug("Discarding analysis failure for superseded session", zap.Error(err))
			return
		}
		log.Error("Document analysis failed", zap.Error(err))
		return
	}
	if err := s.sessions.Complete(job.Generation, result); err != nil {
		log.Debug("Discarding analysis result for superseded session", zap.Error(err))
		return
	}
	log.Info("Document analysis complete", zap.Int("sentiment_score", result.SentimentScore))
}

// Reset drops the session and cancels anything still in flight for it.
func (s *DocumentService) Reset() {
	s.sessions.Reset()
	s.logger.Info("Session reset")
}

// Ask runs one chat turn. The user message is recorded before the model is
// called; on failure no model message is added and the error wraps
// ErrChatFailure.
func (s *DocumentService) Ask(ctx context.Context, text string) (store.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return store.ChatMessage{}, ErrEmptyMessage
	}

	turnCtx, turn, err := s.sessions.BeginTurn()
	if err != nil {
		return store.ChatMessage{}, err
	}
	defer s.sessions.EndTurn(turn)

	if _, err := s.sessions.AppendMessage(turn.Generation, store.ChatMessage{Role: store.RoleUser, Text: text}); err != nil {
		return store.ChatMessage{}, err
	}

	callCtx, cancel := context.WithTimeout(turnCtx, s.opts.ChatTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	reply, err := s.chat.Ask(callCtx, turn.Content, turn.History, text)
	if err != nil {
		s.logger.Error("Chat turn failed", zap.Uint64("turn", turn.ID), zap.Error(err))
		return store.ChatMessage{}, err
	}

	msg, err := s.sessions.AppendMessage(turn.Generation, store.ChatMessage{Role: store.RoleModel, Text: reply})
	if err != nil {
		return store.ChatMessage{}, fmt.Errorf("failed to store model reply: %w", err)
	}
	return msg, nil
}

func (s *DocumentService) Snapshot() store.SessionSnapshot {
	return s.sessions.Snapshot()
}

func (s *DocumentService) Content() (string, error) {
	return s.sessions.Content()
}

func (s *DocumentService) History() ([]store.ChatMessage, error) {
	sess, err := s.sessions.Session()
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// Wait blocks until background analyses have finished.
func (s *DocumentService) Wait() {
	s.wg.Wait()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

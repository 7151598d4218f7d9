package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gwi.com/doc-insights/internal/core"
	"gwi.com/doc-insights/internal/ingest"
	"gwi.com/doc-insights/internal/store"
)

// multipart bodies carry headers and boundaries on top of the file itself
const multipartOverhead = 1 << 20

type APIHandler struct {
	documents      *core.DocumentService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewAPIHandler(ds *core.DocumentService, maxUploadBytes int64, logger *zap.Logger) *APIHandler {
	return &APIHandler{documents: ds, maxUploadBytes: maxUploadBytes, logger: logger}
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// Same outcome as a file rejected while reading: the old session is gone.
			h.documents.Reset()
			http.Error(w, "Document too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file field named 'file' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	lastModified, err := parseLastModified(r.FormValue("last_modified"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.documents.Upload(core.UploadInput{
		Name:         header.Filename,
		Size:         header.Size,
		MIMEType:     header.Header.Get("Content-Type"),
		LastModified: lastModified,
		Body:         file,
	})
	if err != nil {
		h.writeError(w, r, "Failed to read document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// parseLastModified accepts the browser's File.lastModified (milliseconds
// since the epoch) or an RFC 3339 timestamp.
func parseLastModified(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last_modified %q", v)
	}
	return t, nil
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.documents.Snapshot())
}

func (h *APIHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.documents.Retry()
	if err != nil {
		h.writeError(w, r, "Failed to retry analysis", err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	h.documents.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ContentHandler(w http.ResponseWriter, r *http.Request) {
	content, err := h.documents.Content()
	if err != nil {
		h.writeError(w, r, "Failed to get content", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(content))
}

func (h *APIHandler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	insights, err := h.documents.Insights()
	if err != nil {
		h.writeError(w, r, "Failed to get insights", err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	export, err := h.documents.Export()
	if err != nil {
		h.writeError(w, r, "Failed to export session", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+export.ID+".json"))
	writeJSON(w, http.StatusOK, export)
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	history, err := h.documents.History()
	if err != nil {
		h.writeError(w, r, "Failed to list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.documents.Ask(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, "Failed to post message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// writeError maps domain errors onto status codes. Only unexpected failures
// are logged at error level.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(fallback,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg = fallback
	}
	http.Error(w, msg, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrReadFailure), errors.Is(err, core.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNoSession),
		errors.Is(err, store.ErrNotReady),
		errors.Is(err, store.ErrTurnInProgress),
		errors.Is(err, store.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, core.ErrChatFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

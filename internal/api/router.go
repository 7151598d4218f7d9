package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// The single document session
		r.Route("/session", func(r chi.Router) {
			r.Post("/", apiHandler.UploadHandler)
			r.Get("/", apiHandler.GetSessionHandler)
			r.Delete("/", apiHandler.ResetHandler)
			r.Post("/retry", apiHandler.RetryHandler)

			r.Get("/content", apiHandler.ContentHandler)
			r.Get("/insights", apiHandler.InsightsHandler)
			r.Get("/export", apiHandler.ExportHandler)

			r.Get("/messages", apiHandler.ListMessagesHandler)
			r.Post("/messages", apiHandler.PostMessageHandler)
		})
	})

	return r
}

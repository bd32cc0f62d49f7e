package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/digest-api/internal/api"
	apiMiddleware "github.com/phrazzld/digest-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.executor)

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks/{date}", func(r chi.Router) {
			r.Post("/initialize", taskHandler.Initialize)
			r.Post("/process", taskHandler.Process)
			r.Post("/publish", taskHandler.Publish)
			r.Post("/retry", taskHandler.Retry)
			r.Post("/recover", taskHandler.Recover)
			r.Get("/progress", taskHandler.Progress)
		})
		r.Post("/maintenance/archive", taskHandler.Archive)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

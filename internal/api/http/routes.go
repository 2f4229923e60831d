package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/veranemoloko/vidbatch/internal/config"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up job routes, health check, and Prometheus metrics endpoint.
func NewRouter(jobService JobServiceI, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	jobHandler := NewJobHandler(jobService, cfg.ProgressInterval, logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/download", jobHandler.CreateJob)
		r.Get("/progress/{jobID}", jobHandler.Progress)
	})
	r.Get("/download_file/{jobID}/{filename}", jobHandler.DownloadFile)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

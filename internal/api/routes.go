// Package api exposes the read-only membership admin endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// RouterConfig carries the settings SetupRoutes needs from config.
type RouterConfig struct {
	AllowedOrigins []string
	Token          string
	Gatherer       prometheus.Gatherer
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(instrument)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health and metrics (no auth required)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.Token))

		r.Get("/members/{memberID}/status", h.GetMemberStatus)
		r.Get("/wards/{wardCode}/geography", h.GetWardGeography)

		r.Route("/membership", func(r chi.Router) {
			r.Get("/breakdown", h.GetStatusBreakdown)
			r.Post("/classify", h.ClassifyExpiry)
		})
	})

	return r
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

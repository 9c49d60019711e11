package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/metrics"
)

// RouterConfig contains the handlers and middleware for the portal API.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	ContentHandler *ContentHandler
	AuthMiddleware func(http.Handler) http.Handler
	MetricsEnabled bool
	MetricsPath    string
	Logger         zerolog.Logger
}

// NewRouter assembles the portal's HTTP routes.
//
// /health, the metrics endpoint, /auth/login, and /auth/register are
// reachable without credentials; everything else passes through the
// auth middleware and carries a resolved workspace identity.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(cfg.Logger))
	r.Use(cfg.AuthMiddleware)

	r.Get("/health", handleHealth)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/register", cfg.AuthHandler.Register)
		r.Get("/me", cfg.AuthHandler.Me)
		r.Post("/logout", cfg.AuthHandler.Logout)
		r.Put("/change-password", cfg.AuthHandler.ChangePassword)
	})

	r.Post("/documents/upload", cfg.ContentHandler.Upload)
	r.Post("/query", cfg.ContentHandler.Query)
	r.Get("/graphs", cfg.ContentHandler.Graph)

	return r
}

// handleHealth handles health check requests.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// requestLogger logs each request at debug level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "http").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/standup/pkg/usecase"
)

type Server struct {
	router         *chi.Mux
	uc             *usecase.UseCases
	allowedOrigins []string
	enableMetrics  bool
}

type Options func(*Server)

// WithAllowedOrigins sets the CORS allowed origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Options {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithMetrics exposes Prometheus metrics at /metrics
func WithMetrics(enabled bool) Options {
	return func(s *Server) {
		s.enableMetrics = enabled
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:         r,
		uc:             uc,
		allowedOrigins: []string{"*"},
		enableMetrics:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler)
	if s.enableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze-chat", analyzeChatHandler(uc.Analysis))

		r.Group(func(r chi.Router) {
			r.Use(requireBearer)

			r.Route("/chats/{chatID}", func(r chi.Router) {
				r.Get("/", chatInfoHandler(uc.Standup))
				r.Get("/connection", connectionHandler(uc.Standup))
				r.Get("/members", membersHandler(uc.Standup))
				r.Get("/missing", missingHandler(uc.Standup))
				r.Get("/reports", listReportsHandler(uc.Analysis))

				r.Route("/standups", func(r chi.Router) {
					r.Get("/", listStandupsHandler(uc.Standup))
					r.Get("/cached", cachedStandupsHandler(uc.Standup))
					r.Get("/all", allStandupsHandler(uc.Standup))
					r.Post("/refresh", refreshStandupsHandler(uc.Standup))
					r.Delete("/cache", clearCacheHandler(uc.Standup))
				})
			})

			r.Get("/reports/{reportID}", getReportHandler(uc.Analysis))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

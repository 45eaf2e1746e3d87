package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"social-signin.app/payments/billing"
	"social-signin.app/payments/internal/logger"
	"social-signin.app/payments/internal/ratelimit"
)

type Server struct {
	Router  chi.Router
	Billing *billing.Service
	Version string
}

// Options carries the optional pieces of the HTTP surface. Nil fields
// are simply left out of the router.
type Options struct {
	Version        string
	Limiter        *ratelimit.FixedWindow
	MetricsHandler http.Handler
}

func NewHTTPServer(svc *billing.Service, opts Options) *Server {
	router := chi.NewRouter()

	s := &Server{
		Router:  router,
		Billing: svc,
		Version: opts.Version,
	}

	router.Use(requestID)
	router.Use(logRequests)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	router.Get("/", s.Root)
	router.Get("/health", s.Health)
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	router.Route("/stripe", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
		r.Post("/create-subscription", s.CreateSubscription)
		r.Post("/update-subscription", s.UpdateSubscription)
		r.Post("/cancel-subscription", s.CancelSubscription)
		r.Get("/subscription", s.CurrentSubscription)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "Stripe backend running",
	})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": s.Version,
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		logger.Info("Request handled", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  recorder.Header().Get("X-Request-ID"),
		})
	})
}

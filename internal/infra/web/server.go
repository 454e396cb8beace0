package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nyota-loan-api/internal/config"
	red "nyota-loan-api/internal/infra/redis"
	"nyota-loan-api/internal/usecase"
)

const (
	serviceName = "Nyota Youth Empowerment API"
	version     = "1.0.0"
)

// Server wires the public loan API routes to the use cases. The rate limiter
// is optional; when nil, payment initiation is not throttled.
type Server struct {
	appUC     usecase.ApplicationUseCase
	payUC     usecase.PaymentUseCase
	limiter   *red.RateLimiter
	rateLimit config.RateLimitConfig
	log       *zerolog.Logger
	startedAt time.Time
}

func NewServer(
	appUC usecase.ApplicationUseCase,
	payUC usecase.PaymentUseCase,
	limiter *red.RateLimiter,
	rateLimit config.RateLimitConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		appUC:     appUC,
		payUC:     payUC,
		limiter:   limiter,
		rateLimit: rateLimit,
		log:       logger,
		startedAt: time.Now(),
	}
}

// Routes builds the router. CORS runs before routing so OPTIONS preflight
// succeeds on every path.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/loan-options", s.handleLoanOptions)
		r.Post("/submit-application", s.handleSubmitApplication)
		r.Post("/initiate-payment", s.handleInitiatePayment)
		r.Post("/mpesa-callback", s.handleCallback)
		r.Get("/application/{id}", s.handleGetApplication)
	})

	return r
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

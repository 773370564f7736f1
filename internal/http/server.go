// Package http exposes the finance service and the payment webhook as a JSON
// API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"meurenda/internal/cache"
	applog "meurenda/internal/log"
	"meurenda/internal/middleware/ratelimit"
	"meurenda/internal/middleware/security"
	"meurenda/internal/middleware/trace"
	"meurenda/internal/services"
)

const (
	cacheCleanupInterval = 10 * time.Minute
	webhookPath          = "/webhooks/kiwify"
)

// Pinger is implemented by persistence backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Webhook and Pinger are optional.
type Options struct {
	Addr           string
	Finance        *services.FinanceService
	Webhook        http.Handler
	Pinger         Pinger
	Logger         *applog.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
	Caches         []cache.Cleaner
}

type Server struct {
	http.Server
	finance *services.FinanceService
	pinger  Pinger
	logger  *applog.Logger
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, applog.FieldError, err.Error())
		}
	}

	s := &Server{
		finance:          opts.Finance,
		pinger:           opts.Pinger,
		logger:           logger,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		cacheManager:     cache.NewManager(logger.Slog()),
	}

	for _, c := range opts.Caches {
		s.cacheManager.Register(c)
	}
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux, opts.Webhook)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
			"Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded, try again later"})
	})

	// Webhook deliveries bypass the limiter.
	api := limit(mux)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == webhookPath {
			mux.ServeHTTP(w, r)
			return
		}
		api.ServeHTTP(w, r)
	})
	handler = headers.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, webhook http.Handler) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("DELETE /api/transactions", s.handleClearTransactions)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("PUT /api/goals", s.handleSaveGoal)
	mux.HandleFunc("POST /api/goals/preview", s.handlePreviewGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("DELETE /api/goals", s.handleClearGoals)
	mux.HandleFunc("POST /api/goals/{id}/activate", s.handleActivateGoal)
	mux.HandleFunc("GET /api/goals/active/plan", s.handleActivePlan)
	mux.HandleFunc("GET /api/goals/active/tracking", s.handleTracking)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports", s.handleReport)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	if webhook != nil {
		mux.Handle("POST "+webhookPath, webhook)
	}
}

// Shutdown stops the background loops and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

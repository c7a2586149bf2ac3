package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"

	"cardspend/internal/auth"
	applog "cardspend/internal/log"
	"cardspend/internal/middleware/ratelimit"
	"cardspend/internal/middleware/security"
	"cardspend/internal/middleware/trace"
	"cardspend/internal/services"
)

// Defaults applied when Options leaves a field empty.
const (
	DefaultMaxUploadBytes     = 10 << 20
	DefaultRateLimitPerMinute = 120
	readinessTimeout          = 2 * time.Second
)

// Services bundles what the handlers call into.
type Services struct {
	Auth       *auth.Service
	Categories *services.CategoryService
	Expenses   *services.ExpenseService
	Ingest     *services.IngestService
	Memory     *services.MemoryService
	Suggest    *services.SuggestService
	State      *services.StateService
	// Ping reports storage readiness for /readyz.
	Ping func(context.Context) error
}

// Options configures the transport around the handlers.
type Options struct {
	CORSOrigin         string
	RateLimitPerMinute int
	MaxUploadBytes     int64
	Logger             *applog.Logger
}

type Server struct {
	http.Server

	auth       *auth.Service
	categories *services.CategoryService
	expenses   *services.ExpenseService
	ingest     *services.IngestService
	memory     *services.MemoryService
	suggest    *services.SuggestService
	state      *services.StateService
	ping       func(context.Context) error

	logger         *applog.Logger
	maxUploadBytes int64
	limiter        *ratelimit.Limiter
	detector       *security.Detector
	tracer         *trace.Middleware
	metrics        securityMetrics

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		auth:           svc.Auth,
		categories:     svc.Categories,
		expenses:       svc.Expenses,
		ingest:         svc.Ingest,
		memory:         svc.Memory,
		suggest:        svc.Suggest,
		state:          svc.State,
		ping:           svc.Ping,
		logger:         logger,
		maxUploadBytes: opts.MaxUploadBytes,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, ratelimit.Mutating, s.rateLimited)(handler)
	handler = newCORS(opts.CORSOrigin).Handler(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/ping", handlePing)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("POST /api/upload", s.optionalAuth(s.handleUpload))

	mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpenses))
	mux.HandleFunc("PATCH /api/expenses/{id}", s.requireAuth(s.handleCategorizeExpense))

	mux.HandleFunc("POST /api/memory", s.requireAuth(s.handleRemember))
	mux.HandleFunc("GET /api/memory", s.requireAuth(s.handleRecall))
	mux.HandleFunc("GET /api/suggest", s.requireAuth(s.handleSuggest))

	mux.HandleFunc("GET /api/summary", s.requireAuth(s.handleSummary))
	mux.HandleFunc("GET /api/reports/monthly.pdf", s.requireAuth(s.handleMonthlyPDF))
	mux.HandleFunc("GET /api/reports/categories.png", s.requireAuth(s.handleCategoryChart))

	mux.HandleFunc("GET /api/export", s.requireAuth(s.handleExport))
	mux.HandleFunc("POST /api/import", s.requireAuth(s.handleImport))
}

func newCORS(origin string) *cors.Cors {
	origins := strings.Split(origin, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After", "Content-Disposition"},
		MaxAge:         600,
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	fields := applog.NewFields().
		WithClientIP(s.detector.ExtractClientIP(r)).
		WithErrorType(applog.ErrorTypeRateLimit).
		WithComponent(applog.ComponentRateLimit)
	fields[applog.FieldPath] = r.URL.Path
	applog.FromContext(r.Context()).Logger.WarnContext(r.Context(), "Rate limit exceeded", fields.ToSlice()...)
	TooManyRequestsError().Write(w)
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsResponse struct {
	Requests  trace.Metrics             `json:"requests"`
	Auth      authMetrics               `json:"auth"`
	Security  security.DetectionMetrics `json:"security"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
}

// handleMetrics reports the in-process request, auth and abuse counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(metricsResponse{
		Requests:  s.tracer.GetMetrics(),
		Auth:      s.metrics.snapshot(),
		Security:  s.detector.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
	}).Write(w)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"message": "pong"}).Write(w)
}

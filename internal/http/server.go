package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	"pfm/internal/services"
	appweb "pfm/web"
)

// Ledger is what the web surface needs from the ledger service.
type Ledger interface {
	Categories() []string
	Open(ctx context.Context) (*core.Budget, error)
	Add(ctx context.Context, in services.AddInput) (core.Transaction, *core.Budget, error)
	Insights(ctx context.Context) (services.Insights, error)
	Export(ctx context.Context, w io.Writer) error
	Ready(ctx context.Context) error
}

const (
	actionAdd             = "add"
	actionRecommendations = "recommendations"

	writesPerMinute = 60
)

type Server struct {
	http.Server
	templates    *template.Template
	ledger       Ledger
	logger       *pfmlog.Logger
	rateLimiter  *rateLimiter
	metrics      securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, ledger Ledger, logger *pfmlog.Logger) (*Server, error) {
	if logger == nil {
		logger = pfmlog.New(pfmlog.DefaultConfig())
	}
	logger = logger.WithComponent(pfmlog.ComponentHTTP)

	t, err := template.New("").Funcs(template.FuncMap{
		"money": core.FormatAmount,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates:   t,
		ledger:      ledger,
		logger:      logger,
		rateLimiter: newRateLimiter(writesPerMinute),
	}

	r := chi.NewRouter()
	r.Use(assignRequestID)
	r.Use(pfmlog.Middleware(logger))
	r.Use(pfmlog.RequestIDMiddleware(requestIDOf))
	r.Use(s.trace)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.limitWrites)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", pfmlog.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Post("/expenses", s.handleCreateExpense)
	r.Get("/ui/totals", s.handleTotals)
	r.Get("/ui/recommendations", s.handleRecommendations)
	r.Get("/export/transactions.xlsx", s.handleExport)
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorReply(http.StatusMethodNotAllowed, "Method not allowed").Header("Allow", "GET, POST").Write(w)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorReply(http.StatusNotFound, "Page not found").Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The advice call can take up to its own timeout.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.logger.Info("Security metrics",
			"rate_limit_hits", atomic.LoadInt64(&s.metrics.rateLimitHits),
			"suspicious_requests", atomic.LoadInt64(&s.metrics.suspiciousRequests))
		err = s.Server.Shutdown(ctx)
	})
	return err
}

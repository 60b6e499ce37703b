package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"cuipo/internal/dashboard"
	"cuipo/internal/log"
	appweb "cuipo/web"
)

// Server serves the dashboard page and its JSON API.
type Server struct {
	http.Server
	svc          *dashboard.Service
	templates    *template.Template
	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	logger       *log.Logger
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires the routes. logger may be nil.
func NewServer(addr string, svc *dashboard.Service, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	logger = log.OrDiscard(logger).WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			// Loads wait on the upstream for up to its own timeout.
			WriteTimeout: 90 * time.Second,
		},
		svc:         svc,
		rateLimiter: newRateLimiter(defaultRequestsPerMinute),
		metrics:     &securityMetrics{},
		logger:      logger,
		started:     time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))

	mux.HandleFunc("GET /api/catalog/departments", s.withSecurityHeaders(s.handleDepartments))
	mux.HandleFunc("GET /api/catalog/entities", s.withSecurityHeaders(s.handleEntities))
	mux.HandleFunc("GET /api/catalog/periods", s.withSecurityHeaders(s.handlePeriods))
	mux.HandleFunc("GET /api/catalog/accounts", s.withSecurityHeaders(s.handleAccounts))

	mux.HandleFunc("POST /api/revenue", s.withSecurityHeaders(s.handleOperation(dashboard.LoadRevenue)))
	mux.HandleFunc("POST /api/revenue/history", s.withSecurityHeaders(s.handleOperation(dashboard.LoadRevenueHistory)))
	mux.HandleFunc("POST /api/expense", s.withSecurityHeaders(s.handleOperation(dashboard.LoadExpense)))
	mux.HandleFunc("POST /api/comparison", s.withSecurityHeaders(s.handleOperation(dashboard.LoadComparison)))
	mux.HandleFunc("POST /api/operations/{op}", s.withSecurityHeaders(s.handleNamedOperation))

	mux.HandleFunc("GET /api/export/revenue.xlsx", s.withSecurityHeaders(s.handleExport(dashboard.LoadRevenue)))
	mux.HandleFunc("GET /api/export/expense.xlsx", s.withSecurityHeaders(s.handleExport(dashboard.LoadExpense)))
	mux.HandleFunc("DELETE /api/session", s.withSecurityHeaders(s.handleResetSession))

	s.Handler = log.Middleware(logger, extractClientIP)(mux)
	return s
}

func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID)
		r = r.WithContext(log.WithContext(r.Context(), logger))

		if reason := suspiciousReason(r, s.metrics); reason != "" {
			logger.WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		// Loads hit the upstream; everything else is served from memory.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "Demasiadas solicitudes. Intente de nuevo en un minuto.").Write(w)
			return
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	cat := s.svc.Catalog()
	data := struct {
		Departments []string
		Periods     any
		Accounts    any
	}{
		Departments: cat.Departments(),
		Periods:     periodViews(cat.Periods()),
		Accounts:    accountViews(cat.Accounts()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err.Error())
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

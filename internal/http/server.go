package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "dtmoney/internal/log"
	"dtmoney/internal/middleware/ratelimit"
	"dtmoney/internal/middleware/security"
	"dtmoney/internal/middleware/trace"
	"dtmoney/internal/session"
	appweb "dtmoney/web"
)

const sessionCookie = "dtmoney_session"

type Server struct {
	http.Server
	templates *template.Template
	sessions  *session.Manager
	ready     func(context.Context) error
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	secureCookies bool
	started       time.Time
	created       atomic.Int64
	shutdownOnce  sync.Once
}

// Options tunes the server. The zero value is usable.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	// Ready reports whether the data backend can serve requests.
	Ready func(context.Context) error
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, sessions *session.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		sessions:         sessions,
		ready:            opts.Ready,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		secureCookies:    opts.SecureCookies,
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	t, err := parseTemplates()
	if err != nil {
		s.logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /ui/search", s.handleSearch)
	mux.HandleFunc("GET /ui/summary", s.handleSummary)
	mux.HandleFunc("GET /ui/transactions", s.handleTransactions)
	mux.HandleFunc("POST /ui/transactions", s.handleCreateTransaction)

	mux.HandleFunc("GET /api/transactions", s.handleAPISearch)
	mux.HandleFunc("POST /api/transactions", s.handleAPICreate)
	mux.HandleFunc("GET /api/summary", s.handleAPISummary)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited, http.MethodPost)(handler)
	handler = s.withSuspiciousRequestLogging(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(s.logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSuspiciousRequestLogging flags scanner traffic without blocking it.
func (s *Server) withSuspiciousRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		"method", r.Method,
		"path", r.URL.Path)
	if isHTMX(r) {
		s.renderError(w, r, http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.")
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// sessionFor returns the caller's session, starting one and setting the
// cookie when the request carries none or an expired one.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			return sess
		}
	}

	sess := s.sessions.Start(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Session started",
		applog.FieldSessionID, sess.ID.String(),
		"active_sessions", s.sessions.Len())
	return sess
}

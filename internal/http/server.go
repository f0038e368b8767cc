package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"milktrack/internal/auth"
	"milktrack/internal/dashboard"
	applog "milktrack/internal/log"
	"milktrack/internal/services"
	appweb "milktrack/web"
)

type Server struct {
	http.Server
	templates *template.Template

	auth    *auth.Service
	entries *services.EntryService
	dash    *dashboard.Manager

	rateLimiter *rateLimiter
	reqLog      *applog.StructuredLogger

	shutdownOnce sync.Once
}

// Rate limiting applies to mutating requests only; reads stay unthrottled.
const (
	mutationBudget  = 60 // per client, per window
	rateWindow      = time.Minute
	staleClientAge  = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// rateLimiter counts mutating requests per client IP inside a sliding
// one-minute window.
type rateLimiter struct {
	mu           sync.Mutex
	counters     map[string]*clientCounter
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientCounter struct {
	lastSeen time.Time
	used     int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		counters:    make(map[string]*clientCounter),
		stopCleanup: make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// evictLoop drops counters for clients that have gone quiet.
func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-staleClientAge)
			rl.mu.Lock()
			for ip, c := range rl.counters {
				if c.lastSeen.Before(cutoff) {
					delete(rl.counters, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// stop terminates the eviction goroutine; safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.counters[clientIP]
	if !ok || now.Sub(c.lastSeen) > rateWindow {
		rl.counters[clientIP] = &clientCounter{lastSeen: now, used: 1}
		return true
	}

	c.used++
	c.lastSeen = now
	return c.used <= mutationBudget
}

// Shutdown gracefully shuts down the server and cleanup routines
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

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, authSvc *auth.Service, entries *services.EntryService, dash *dashboard.Manager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:        authSvc,
		entries:     entries,
		dash:        dash,
		rateLimiter: newRateLimiter(),
		reqLog: applog.NewStructuredLogger(applog.New(applog.Config{
			Level:     slog.LevelInfo,
			Component: applog.ComponentHTTP,
		})),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))

	mux.HandleFunc("POST /api/auth/register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("GET /api/profile", s.withSecurityHeaders(s.requireAuth(s.handleGetProfile)))
	mux.HandleFunc("PATCH /api/profile", s.withSecurityHeaders(s.requireAuth(s.handleUpdateProfile)))

	mux.HandleFunc("GET /api/entries", s.withSecurityHeaders(s.requireAuth(s.handleListEntries)))
	mux.HandleFunc("POST /api/entries", s.withSecurityHeaders(s.requireAuth(s.handleCreateEntry)))
	mux.HandleFunc("PATCH /api/entries/{id}", s.withSecurityHeaders(s.requireAuth(s.handleUpdateEntry)))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withSecurityHeaders(s.requireAuth(s.handleDeleteEntry)))

	mux.HandleFunc("GET /api/stats", s.withSecurityHeaders(s.requireAuth(s.handleStats)))
	mux.HandleFunc("GET /api/series", s.withSecurityHeaders(s.requireAuth(s.handleSeries)))

	mux.HandleFunc("GET /api/export/excel", s.withSecurityHeaders(s.requireAuth(s.handleExportExcel)))
	mux.HandleFunc("GET /api/export/pdf", s.withSecurityHeaders(s.requireAuth(s.handleExportPDF)))

	return s
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		r = r.WithContext(ctx)

		s.reqLog.LogHTTPStart(ctx, r, clientIP)

		// Apply rate limiting to mutating requests
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Create a custom response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		// Log request completion
		duration := time.Since(start)
		s.reqLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

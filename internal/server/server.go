package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shaharia-lab/userhub/internal/api"
	"github.com/shaharia-lab/userhub/internal/metrics"
	"github.com/shaharia-lab/userhub/internal/web"
)

// Options configures the backend HTTP server.
type Options struct {
	Port int

	// FrontendFS holds the built SPA. When nil, non-API requests are proxied
	// to FrontendDevURL.
	FrontendFS     fs.FS
	FrontendDevURL string

	// CORSAllowedOrigins defaults to "*" when empty.
	CORSAllowedOrigins []string

	// RateLimitRPS of 0 disables API rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Metrics is optional. When nil, /metrics is not served.
	Metrics *metrics.Metrics
}

// Server is the HTTP server for userhub.
type Server struct {
	opts       Options
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New creates a new Server that serves apiSrv under /api.
func New(apiSrv *api.Server, opts Options, logger *slog.Logger) (*Server, error) {
	s := &Server{opts: opts, logger: logger}

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.HTTP.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
		}
		apiSrv.Mount(r)
	})

	// Static files + SPA fallback
	frontend, err := s.frontendHandler()
	if err != nil {
		return nil, err
	}
	r.Handle("/*", frontend)

	s.handler = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger is a chi middleware that logs each incoming request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// frontendHandler serves the embedded SPA, or proxies to the frontend dev
// server when nothing is embedded.
func (s *Server) frontendHandler() (http.Handler, error) {
	if s.opts.FrontendFS != nil {
		return web.SPAHandler(s.opts.FrontendFS), nil
	}

	target, err := url.Parse(s.opts.FrontendDevURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid frontend dev URL %q", s.opts.FrontendDevURL)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		s.logger.Warn("frontend dev server unreachable", "target", target.String(), "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"frontend dev server unreachable"}`))
	}
	return proxy, nil
}

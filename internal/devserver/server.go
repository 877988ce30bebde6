// Package devserver serves the built frontend during development, proxying
// API prefixes to the backend and rebuilding when sources change.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shaharia-lab/userhub/internal/config"
	"github.com/shaharia-lab/userhub/internal/web"
)

// Server is the frontend development server.
type Server struct {
	port       int
	proxy      *Proxy
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New creates a dev server for cfg. Static files are served from outDir.
func New(cfg *config.FrontendConfig, outDir string, logger *slog.Logger) (*Server, error) {
	proxy, err := NewProxy(cfg.Server.Proxy, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{port: cfg.Server.Port, proxy: proxy, logger: logger}
	static := web.SPAHandler(os.DirFS(outDir))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := s.proxy.Match(r.URL.Path); ok {
			h.ServeHTTP(w, r)
			return
		}
		static.ServeHTTP(w, r)
	}))

	s.handler = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the dev server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("dev server listening", "addr", ln.Addr().String())

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
		s.logger.Info("shutting down dev server")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("dev request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

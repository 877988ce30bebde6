package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/userhub/internal/api"
	"github.com/shaharia-lab/userhub/internal/logger"
	"github.com/shaharia-lab/userhub/internal/metrics"
	svcmocks "github.com/shaharia-lab/userhub/internal/service/mocks"
	"github.com/shaharia-lab/userhub/internal/storage"
)

func discardLogger() *slog.Logger {
	return logger.Discard()
}

func newTestServer(t *testing.T, opts Options) (*Server, *svcmocks.MockUserService) {
	t.Helper()
	userSvc := new(svcmocks.MockUserService)
	if opts.FrontendFS == nil && opts.FrontendDevURL == "" {
		opts.FrontendFS = fstest.MapFS{"index.html": {Data: []byte("<html>spa</html>")}}
	}
	s, err := New(api.New(userSvc, nil, discardLogger()), opts, discardLogger())
	require.NoError(t, err)
	return s, userSvc
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_APIAndSPAFallback(t *testing.T) {
	s, userSvc := newTestServer(t, Options{})
	userSvc.On("List", mock.Anything).Return([]*storage.User{}, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	w = serve(s, httptest.NewRequest(http.MethodGet, "/users/edit/3", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>spa</html>", w.Body.String())
}

func TestServer_CORS(t *testing.T) {
	s, _ := newTestServer(t, Options{CORSAllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := serve(s, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestServer_RateLimit(t *testing.T) {
	s, userSvc := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	userSvc.On("Count", mock.Anything).Return(int64(0), nil)

	var codes []int
	for range 3 {
		codes = append(codes, serve(s, httptest.NewRequest(http.MethodGet, "/api/users/stats", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Health is outside the limited group.
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestServer_Metrics(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	s, _ := newTestServer(t, Options{Metrics: m})

	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `userhub_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestServer_DevProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "vite:"+r.URL.Path)
	}))
	defer upstream.Close()

	s, _ := newTestServer(t, Options{FrontendDevURL: upstream.URL})
	w := serve(s, httptest.NewRequest(http.MethodGet, "/src/main.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vite:/src/main.js", w.Body.String())
}

func TestServer_DevProxyUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, _ := newTestServer(t, Options{FrontendDevURL: "http://" + addr})
	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNew_InvalidDevURL(t *testing.T) {
	_, err := New(api.New(new(svcmocks.MockUserService), nil, discardLogger()), Options{FrontendDevURL: "::bad"}, discardLogger())
	assert.Error(t, err)
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s, _ := newTestServer(t, Options{Port: port})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

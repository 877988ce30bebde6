package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/userhub/internal/eventbus"
)

func TestHTTPMiddleware_LabelsByRoutePattern(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.HTTP.Middleware)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTP.requestsTotal.WithLabelValues("GET", "/api/users/{id}", "404"))
	assert.Equal(t, 3.0, got)
}

func TestUserMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Users.SetUserCount(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Users.users))

	m.Users.Listen(eventbus.Event{Type: "user.created"})
	m.Users.Listen(eventbus.Event{Type: "user.created"})
	m.Users.Listen(eventbus.Event{Type: "user.deleted"})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Users.eventsTotal.WithLabelValues("user.created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Users.eventsTotal.WithLabelValues("user.deleted")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.Users.SetUserCount(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "userhub_users 3")
	assert.Contains(t, string(body), "go_goroutines")
}

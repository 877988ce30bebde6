package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaharia-lab/userhub/internal/eventbus"
)

// UserMetrics tracks user population and lifecycle events.
type UserMetrics struct {
	users       prometheus.Gauge
	eventsTotal *prometheus.CounterVec
}

// NewUserMetrics creates and registers user metrics.
func NewUserMetrics(registry prometheus.Registerer) (*UserMetrics, error) {
	m := &UserMetrics{
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Number of registered users at the last stats refresh",
		}),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_events_total",
				Help:      "Total number of user lifecycle events",
			},
			[]string{"type"}, // user.created, user.updated, user.deleted
		),
	}
	for _, c := range []prometheus.Collector{m.users, m.eventsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetUserCount records the current number of users.
func (m *UserMetrics) SetUserCount(n int64) {
	m.users.Set(float64(n))
}

// Listen is an eventbus.Listener that counts user lifecycle events.
func (m *UserMetrics) Listen(e eventbus.Event) {
	m.eventsTotal.WithLabelValues(e.Type).Inc()
}

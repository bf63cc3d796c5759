package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the activity bus.
type Metrics struct {
	EventsPublished prometheus.Counter
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
}

// New creates a new Metrics instance with all activity metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncline_activity_events_published_total",
			Help: "Total number of activity events dispatched after commit",
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncline_activity_relay_published_total",
			Help: "Total number of activity events relayed to Kafka",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncline_activity_relay_failures_total",
			Help: "Total number of failed Kafka relay attempts",
		}),
	}
}

// IncEventsPublished records one post-commit dispatch.
func (m *Metrics) IncEventsPublished() {
	m.EventsPublished.Inc()
}

// IncRelayPublished records one successful relay produce.
func (m *Metrics) IncRelayPublished() {
	m.RelayPublished.Inc()
}

// IncRelayFailures records one failed relay produce.
func (m *Metrics) IncRelayFailures() {
	m.RelayFailures.Inc()
}

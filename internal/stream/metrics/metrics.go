package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the stream dispatcher.
type Metrics struct {
	SubscribersLive        prometheus.Gauge
	NotificationsDelivered prometheus.Counter
	NotificationsDropped   prometheus.Counter
	CatchUpBatchSize       prometheus.Histogram
}

// New creates a new Metrics instance with all stream metrics registered.
func New() *Metrics {
	return &Metrics{
		SubscribersLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "syncline_stream_subscribers_live",
			Help: "Number of currently connected push subscribers",
		}),
		NotificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncline_stream_notifications_delivered_total",
			Help: "Total notifications enqueued to subscriber buffers",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncline_stream_notifications_dropped_total",
			Help: "Total notifications dropped due to slow or broken connections",
		}),
		CatchUpBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "syncline_stream_catchup_batch_size",
			Help:    "Events replayed per organization on reconnect",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
	}
}

// IncSubscribers records a new live connection.
func (m *Metrics) IncSubscribers() {
	m.SubscribersLive.Inc()
}

// DecSubscribers records a closed connection.
func (m *Metrics) DecSubscribers() {
	m.SubscribersLive.Dec()
}

// IncDelivered records one enqueued notification.
func (m *Metrics) IncDelivered() {
	m.NotificationsDelivered.Inc()
}

// IncDropped records one dropped notification (connection torn down).
func (m *Metrics) IncDropped() {
	m.NotificationsDropped.Inc()
}

// ObserveCatchUpBatch records the size of one per-organization replay.
func (m *Metrics) ObserveCatchUpBatch(n int) {
	m.CatchUpBatchSize.Observe(float64(n))
}

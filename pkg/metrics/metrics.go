package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	ActiveWebSocketConnections prometheus.Gauge
	CanvasEventsProcessed      *prometheus.CounterVec
	ConnectionGesturesRejected prometheus.Counter
	StoreWrites                *prometheus.CounterVec
	StoreWriteCoalesced        prometheus.Counter
	JobStatusUpdates           *prometheus.CounterVec
	JobPollFailures            prometheus.Counter
	ExternalRequestDuration    *prometheus.HistogramVec
}

// New registers and returns the service metrics
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ActiveWebSocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "careflow_websocket_connections",
			Help: "Number of active canvas WebSocket connections",
		}),
		CanvasEventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_canvas_events_total",
			Help: "Canvas events processed, by event type",
		}, []string{"type"}),
		ConnectionGesturesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "careflow_connection_rejections_total",
			Help: "Connect gestures rejected by validation",
		}),
		StoreWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_store_writes_total",
			Help: "Durable store writes, by outcome",
		}, []string{"outcome"}),
		StoreWriteCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "careflow_store_writes_coalesced_total",
			Help: "Store writes absorbed by the debounce window",
		}),
		JobStatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_job_status_updates_total",
			Help: "Generation job status updates applied, by channel",
		}, []string{"channel"}),
		JobPollFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "careflow_job_poll_failures_total",
			Help: "Transient polling failures against the generation backend",
		}),
		ExternalRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careflow_external_request_seconds",
			Help:    "Latency of calls to external collaborators",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}
}

package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geoctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoctl",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Persistence gateway calls by operation and result.",
		},
		[]string{"node", "operation", "success"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geoctl",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Persistence gateway call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "operation", "success"},
	)
	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoctl",
			Subsystem: "engine",
			Name:      "intents_total",
			Help:      "Intents seen by the orchestration engine, by disposition.",
		},
		[]string{"kind", "disposition"},
	)
	intentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geoctl",
			Subsystem: "engine",
			Name:      "intent_duration_seconds",
			Help:      "Time from dispatch to settle for one intent instance.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Intent dispositions.
const (
	IntentStarted   = "started"
	IntentIgnored   = "ignored"
	IntentSettled   = "settled"
	IntentDiscarded = "discarded"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			gatewayCalls, gatewayDuration,
			intents, intentDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordGatewayCall(node, operation string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	gatewayCalls.WithLabelValues(node, operation, successLabel).Inc()
	gatewayDuration.WithLabelValues(node, operation, successLabel).Observe(duration.Seconds())
}

func RecordIntent(kind, disposition string) {
	RegisterMetrics()
	intents.WithLabelValues(kind, disposition).Inc()
}

func RecordIntentSettled(kind string, duration time.Duration) {
	RegisterMetrics()
	intents.WithLabelValues(kind, IntentSettled).Inc()
	intentDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus collectors for store operations,
// remote calls and projector loads.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/remote"
)

const namespace = "loft"

// Recorder implements the recorder hooks of core, remote and projector on
// top of a private registry.
type Recorder struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
	loads         *prometheus.CounterVec
	loadLatency   *prometheus.HistogramVec
}

// New creates a Recorder. Runtime collectors are included when withRuntime is set.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by table, operation and result.",
		}, []string{"operation", "table", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation", "table"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Remote requests by origin, endpoint and HTTP status.",
		}, []string{"origin", "endpoint", "status", "result"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Remote request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"origin", "endpoint"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projector",
			Name:      "loads_total",
			Help:      "Projector loads by outcome.",
		}, []string{"projector", "outcome"}),
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projector",
			Name:      "load_duration_seconds",
			Help:      "Projector load latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"projector"}),
	}

	r.registry.MustRegister(
		r.storeOps, r.storeLatency,
		r.remoteCalls, r.remoteLatency,
		r.loads, r.loadLatency,
	)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, operation, table string, success bool, duration time.Duration) {
	r.storeOps.WithLabelValues(operation, table, result(success)).Inc()
	r.storeLatency.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// ObserveRemote implements remote.Recorder.
func (r *Recorder) ObserveRemote(origin, endpoint string, status int, success bool, duration time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.remoteCalls.WithLabelValues(origin, endpoint, code, result(success)).Inc()
	r.remoteLatency.WithLabelValues(origin, endpoint).Observe(duration.Seconds())
}

// ObserveLoad implements projector.Recorder.
func (r *Recorder) ObserveLoad(name, outcome string, duration time.Duration) {
	r.loads.WithLabelValues(name, outcome).Inc()
	r.loadLatency.WithLabelValues(name).Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "ok"
	}
	return "error"
}

var (
	_ core.MetricsRecorder = (*Recorder)(nil)
	_ remote.Recorder      = (*Recorder)(nil)
	_ projector.Recorder   = (*Recorder)(nil)
)

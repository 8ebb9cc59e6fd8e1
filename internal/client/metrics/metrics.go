// Package metrics defines the Prometheus metrics of the session layer. It is
// the single source of truth for metric names, labels and help strings.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bizkeeper"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder owns a registry with the session metrics registered on it.
type Recorder struct {
	registry *prometheus.Registry

	// Operations counts finished session operations.
	// Labels:
	//   - op: operation name (e.g. "login", "register")
	//   - outcome: "success" or "failure"
	//   - provider: provider that produced the session, empty on failure
	Operations *prometheus.CounterVec

	// Duration measures session operations end to end, queueing included.
	Duration *prometheus.HistogramVec

	// Online is 1 while the identity backends are reachable.
	Online prometheus.Gauge
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "operations_total",
				Help:      "Total number of session operations, by outcome and provider.",
			},
			[]string{"op", "outcome", "provider"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "operation_duration_seconds",
				Help:      "Duration of session operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 when the identity backends are reachable, 0 otherwise.",
		}),
	}
}

// ObserveOperation records one finished operation.
func (r *Recorder) ObserveOperation(op, outcome, provider string, d time.Duration) {
	r.Operations.WithLabelValues(op, outcome, provider).Inc()
	r.Duration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) SetOnline(online bool) {
	if online {
		r.Online.Set(1)
	} else {
		r.Online.Set(0)
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

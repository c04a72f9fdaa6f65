package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	buildDuration prom.Histogram
	stageDuration *prom.HistogramVec
	buildOutcome  *prom.CounterVec
	queueDepth    prom.Gauge
	inFlight      prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg (a
// fresh registry when nil). Each call registers a new set; a second call
// with the same registry panics on the duplicate registration.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "peasant",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "peasant",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual executor stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "peasant",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "peasant",
			Name:      "queue_depth",
			Help:      "Submissions buffered ahead of admission",
		})
		pr.inFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: "peasant",
			Name:      "builds_in_flight",
			Help:      "Builds currently admitted and running",
		})
		reg.MustRegister(pr.buildDuration, pr.stageDuration, pr.buildOutcome, pr.queueDepth, pr.inFlight)
	})
	return pr
}

func (pr *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	pr.buildDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	pr.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (pr *PrometheusRecorder) SetQueueDepth(n int) {
	pr.queueDepth.Set(float64(n))
}

func (pr *PrometheusRecorder) SetInFlight(n int) {
	pr.inFlight.Set(float64(n))
}

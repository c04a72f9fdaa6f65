// Package metrics provides observability hooks for the build queue.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks and costs nothing
// when disabled. Swap in PrometheusRecorder to activate collection.
package metrics

import "time"

// OutcomeLabel enumerates terminal build outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for queue and build metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncBuildOutcome(outcome OutcomeLabel)
	SetQueueDepth(n int)
	SetInFlight(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(OutcomeLabel)               {}
func (NoopRecorder) SetQueueDepth(int)                          {}
func (NoopRecorder) SetInFlight(int)                            {}

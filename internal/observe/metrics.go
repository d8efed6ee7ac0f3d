// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and structured logging, plus HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/diarserver"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per collaborator call ---

	// TranscribeDuration tracks transcriber round-trip latency.
	TranscribeDuration metric.Float64Histogram

	// DiarizeDuration tracks diarizer round-trip latency.
	DiarizeDuration metric.Float64Histogram

	// EmbedDuration tracks embedder round-trip latency.
	EmbedDuration metric.Float64Histogram

	// TranscodeDuration tracks transcoder latency.
	TranscodeDuration metric.Float64Histogram

	// RequestDuration tracks end-to-end /inference and /transcribe latency.
	RequestDuration metric.Float64Histogram

	// --- Resolver outcome counters ---

	// SpeakerMatches counts turns resolved to an existing speaker profile.
	SpeakerMatches metric.Int64Counter

	// SpeakerAllocations counts turns that allocated a brand-new speaker ID.
	SpeakerAllocations metric.Int64Counter

	// SpeakerFallbacks counts turns that fell back to the SPEAKER_00 sentinel
	// because num_speakers_hint capacity was reached with no match.
	SpeakerFallbacks metric.Int64Counter

	// --- Collaborator error counters ---

	// CollaboratorErrors counts failed collaborator calls. Use with
	// attribute.String("collaborator", "transcriber"|"diarizer"|"embedder"|"transcoder").
	CollaboratorErrors metric.Int64Counter

	// CircuitBreakerStateChanges counts circuit breaker transitions, tagged
	// by which collaborator's breaker tripped and the state it entered. Fed
	// by resilience.CircuitBreakerConfig.OnStateChange.
	CircuitBreakerStateChanges metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of sessions currently held in memory.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// single-request audio-processing latencies, which run from tens of
// milliseconds (embedding extraction) to tens of seconds (transcription of a
// long upload).
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("diarserver.transcribe.duration",
		metric.WithDescription("Latency of transcriber calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizeDuration, err = m.Float64Histogram("diarserver.diarize.duration",
		metric.WithDescription("Latency of diarizer calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("diarserver.embed.duration",
		metric.WithDescription("Latency of embedder calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscodeDuration, err = m.Float64Histogram("diarserver.transcode.duration",
		metric.WithDescription("Latency of transcoder calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RequestDuration, err = m.Float64Histogram("diarserver.request.duration",
		metric.WithDescription("End-to-end latency of an annotation request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SpeakerMatches, err = m.Int64Counter("diarserver.speaker.matches",
		metric.WithDescription("Turns resolved to an existing speaker profile."),
	); err != nil {
		return nil, err
	}
	if met.SpeakerAllocations, err = m.Int64Counter("diarserver.speaker.allocations",
		metric.WithDescription("Turns that allocated a new speaker profile."),
	); err != nil {
		return nil, err
	}
	if met.SpeakerFallbacks, err = m.Int64Counter("diarserver.speaker.fallbacks",
		metric.WithDescription("Turns that fell back to the capacity sentinel speaker."),
	); err != nil {
		return nil, err
	}

	if met.CollaboratorErrors, err = m.Int64Counter("diarserver.collaborator.errors",
		metric.WithDescription("Failed collaborator calls by collaborator kind."),
	); err != nil {
		return nil, err
	}

	if met.CircuitBreakerStateChanges, err = m.Int64Counter("diarserver.circuitbreaker.state_changes",
		metric.WithDescription("Circuit breaker state transitions by collaborator and new state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("diarserver.active_sessions",
		metric.WithDescription("Number of sessions currently held in memory."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("diarserver.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCollaboratorError is a convenience method that records a collaborator
// error counter increment.
func (m *Metrics) RecordCollaboratorError(ctx context.Context, collaborator string) {
	m.CollaboratorErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("collaborator", collaborator)),
	)
}

// RecordCircuitBreakerStateChange is a convenience method that records a
// circuit breaker transition, tagged by the collaborator whose breaker
// tripped and the state it entered.
func (m *Metrics) RecordCircuitBreakerStateChange(ctx context.Context, collaborator, state string) {
	m.CircuitBreakerStateChanges.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("collaborator", collaborator),
			attribute.String("state", state),
		),
	)
}

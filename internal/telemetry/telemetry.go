// Package telemetry holds the process-wide metrics and tracer for remote
// solves.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/roach88/solvebridge"

var (
	// JobsTotal counts jobs by the terminal state they reached.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solvebridge_jobs_total",
		Help: "Remote solve jobs by terminal state",
	}, []string{"state"})

	// StatusFetches counts job status requests.
	StatusFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solvebridge_status_fetches_total",
		Help: "Job status documents fetched while polling",
	})

	// TokenExchanges counts authentication exchanges by mode and result.
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solvebridge_token_exchanges_total",
		Help: "Authentication exchanges by mode and result",
	}, []string{"mode", "result"})

	// PayloadBytes tracks assembled submission sizes.
	PayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solvebridge_payload_bytes",
		Help:    "Size of assembled job submission bodies",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 12), // 1KiB to ~4GiB
	})

	// SolveDuration tracks wall time from submit to terminal state.
	SolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solvebridge_solve_duration_seconds",
		Help:    "Time from job submission to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{"state"})
)

// Start opens a span on the package tracer.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Package telemetry records benchmark service activity as OpenTelemetry
// metrics and exposes them to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "tabular-bench"

// Instrument names.
const (
	MetricProblems     = "tabbench.problems"
	MetricProblemsLive = "tabbench.problems.live"
	MetricEvaluators   = "tabbench.evaluators"
	MetricLive         = "tabbench.evaluators.live"
	MetricEvaluations  = "tabbench.evaluations"
	MetricEpochs       = "tabbench.epochs"
	MetricLatency      = "tabbench.evaluate.latency"
)

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	problems     metric.Int64Counter
	problemsLive metric.Int64UpDownCounter
	evaluators   metric.Int64Counter
	live         metric.Int64UpDownCounter
	evaluations  metric.Int64Counter
	epochs       metric.Int64Counter
	latency      metric.Float64Histogram
}

// New creates the instruments on mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)
	m := &Metrics{}
	var err error

	if m.problems, err = meter.Int64Counter(MetricProblems,
		metric.WithDescription("Problems created"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create problem counter: %w", err)
	}
	if m.problemsLive, err = meter.Int64UpDownCounter(MetricProblemsLive,
		metric.WithDescription("Problems currently registered"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create live problem counter: %w", err)
	}
	if m.evaluators, err = meter.Int64Counter(MetricEvaluators,
		metric.WithDescription("Evaluators created"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create evaluator counter: %w", err)
	}
	if m.live, err = meter.Int64UpDownCounter(MetricLive,
		metric.WithDescription("Evaluators currently registered"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create live evaluator counter: %w", err)
	}
	if m.evaluations, err = meter.Int64Counter(MetricEvaluations,
		metric.WithDescription("Evaluate calls by outcome"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create evaluation counter: %w", err)
	}
	if m.epochs, err = meter.Int64Counter(MetricEpochs,
		metric.WithDescription("Epochs consumed by Evaluate calls"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create epoch counter: %w", err)
	}
	if m.latency, err = meter.Float64Histogram(MetricLatency,
		metric.WithDescription("Evaluate latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	return m, nil
}

// ProblemCreated counts one problem.
func (m *Metrics) ProblemCreated() {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.problems.Add(ctx, 1)
	m.problemsLive.Add(ctx, 1)
}

// ProblemDropped decrements the live problem gauge.
func (m *Metrics) ProblemDropped() {
	if m == nil {
		return
	}
	m.problemsLive.Add(context.Background(), -1)
}

// EvaluatorCreated counts one evaluator.
func (m *Metrics) EvaluatorCreated() {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.evaluators.Add(ctx, 1)
	m.live.Add(ctx, 1)
}

// EvaluatorDropped decrements the live evaluator gauge.
func (m *Metrics) EvaluatorDropped() {
	if m == nil {
		return
	}
	m.live.Add(context.Background(), -1)
}

// Evaluated records one Evaluate call.
func (m *Metrics) Evaluated(cost int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("outcome", Outcome(err)))

	m.evaluations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
	if cost > 0 {
		m.epochs.Add(ctx, int64(cost))
	}
}

// Outcome classifies an Evaluate error for the "outcome" attribute.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, benchmark.ErrEvaluatorExhausted):
		return "exhausted"
	case errors.Is(err, benchmark.ErrInvalidBudget):
		return "invalid_budget"
	default:
		return "error"
	}
}

// Provider is a meter provider backed by a private Prometheus registry.
type Provider struct {
	*sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// NewPrometheus creates a meter provider whose readings are served by Handler.
func NewPrometheus(serviceName string) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	return &Provider{
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		),
		registry: registry,
	}, nil
}

// Handler serves the Prometheus text exposition.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

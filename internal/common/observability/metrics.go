// Package observability exposes OpenTelemetry job instruments through the
// Prometheus exporter and, when configured, job spans through Jaeger.
package observability

import (
	"context"
	"time"

	"appcc-workers/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	formCounter   otelmetric.Int64Counter

	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New registers the exporter with the default Prometheus registry. On
// failure it returns an Observability whose recorders are no-ops.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName)
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"appcc.jobs.processed",
		otelmetric.WithDescription("Number of APPCC jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"appcc.jobs.duration",
		otelmetric.WithDescription("APPCC job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	formCounter, _ := meter.Int64Counter(
		"appcc.forms.validated",
		otelmetric.WithDescription("Control forms validated"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		formCounter:   formCounter,
	}
}

// RecordJob records one finished job for taskType.
func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordFormValidation records a validation pass for a template.
func (o *Observability) RecordFormValidation(ctx context.Context, templateID string, valid bool) {
	if o == nil {
		return
	}
	if o.formCounter != nil {
		o.formCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("template_id", templateID),
			attribute.Bool("valid", valid),
		))
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}

// Package telemetry builds the OpenTelemetry SDK providers that export the
// workflow engine's spans and counters to an OTLP/HTTP collector.
package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/version"
)

// Signal paths appended to the configured collector base URL
const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
)

// Providers are the SDK tracer and meter providers for one process
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup builds exporting providers from cfg. It returns nil when no endpoint
// is configured. Exporters connect lazily; an unreachable collector shows up
// as export errors, not as a Setup failure.
func Setup(ctx context.Context, cfg am.TelemetryConfig) (*Providers, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	base := strings.TrimRight(cfg.OTLPEndpoint, "/")

	spanExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(base+tracesPath))
	if err != nil {
		return nil, errors.Wrapf(err, "create OTLP trace exporter for %s", base)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(base+metricsPath))
	if err != nil {
		return nil, multierr.Append(
			errors.Wrapf(err, "create OTLP metric exporter for %s", base),
			spanExporter.Shutdown(ctx))
	}

	res := resourceFor(cfg)
	interval := time.Duration(cfg.MetricIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Providers{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		),
	}, nil
}

func resourceFor(cfg am.TelemetryConfig) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "hireflow"
	}
	return resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version.Get().Short()),
	)
}

// Install makes p the process-wide otel providers
func (p *Providers) Install() {
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
}

// Shutdown flushes pending spans and metrics and stops both providers
func (p *Providers) Shutdown(ctx context.Context) error {
	return multierr.Combine(
		errors.Wrap(p.TracerProvider.Shutdown(ctx), "shut down tracer provider"),
		errors.Wrap(p.MeterProvider.Shutdown(ctx), "shut down meter provider"),
	)
}

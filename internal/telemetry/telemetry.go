// Package telemetry wires OpenTelemetry tracing and metrics into conductor.
//
// The package is inert unless CONDUCTOR_OTEL_ENABLED=true: Init installs
// no-op providers and every instrument call costs nothing. When enabled,
// spans and metrics go to stdout (CONDUCTOR_OTEL_STDOUT=true), to an
// OTLP/gRPC collector (OTEL_EXPORTER_OTLP_ENDPOINT, e.g. localhost:4317),
// or both. Metrics can target a separate collector via
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT. With telemetry enabled but no
// exporter configured, traces fall back to stdout so enabling always
// produces output somewhere.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/cityops/conductor"

const (
	envEnabled         = "CONDUCTOR_OTEL_ENABLED"
	envStdout          = "CONDUCTOR_OTEL_STDOUT"
	envOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPMetricsOnly = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
)

// Export cadence. Stdout reads faster so dev loops see metrics sooner.
const (
	stdoutMetricInterval = 15 * time.Second
	otlpMetricInterval   = 30 * time.Second
)

var closers []func(context.Context) error

// Enabled reports whether telemetry is active.
func Enabled() bool {
	return os.Getenv(envEnabled) == "true"
}

func stdoutWanted() bool {
	return os.Getenv(envStdout) == "true"
}

// Init installs the global tracer and meter providers. Disabled telemetry
// gets no-op providers; callers never need to check Enabled before
// instrumenting.
func Init(ctx context.Context, service, version string) error {
	if !Enabled() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	spans, err := spanExporters(ctx)
	if err != nil {
		return fmt.Errorf("telemetry: trace exporters: %w", err)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, exp := range spans {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	readers, err := metricReaders(ctx)
	if err != nil {
		return fmt.Errorf("telemetry: metric readers: %w", err)
	}
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	return nil
}

// spanExporters assembles the configured trace sinks, defaulting to stdout
// when none is configured.
func spanExporters(ctx context.Context) ([]sdktrace.SpanExporter, error) {
	var sinks []sdktrace.SpanExporter
	if stdoutWanted() {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, exp)
	}
	if endpoint := os.Getenv(envOTLPEndpoint); endpoint != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		sinks = append(sinks, exp)
	}
	if len(sinks) == 0 {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, exp)
	}
	return sinks, nil
}

// metricReaders assembles periodic readers for the configured metric sinks.
// Unlike traces there is no fallback; a metricless run is fine.
func metricReaders(ctx context.Context) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if stdoutWanted() {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(stdoutMetricInterval)))
	}
	endpoint := os.Getenv(envOTLPMetricsOnly)
	if endpoint == "" {
		endpoint = os.Getenv(envOTLPEndpoint)
	}
	if endpoint != "" {
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(otlpMetricInterval)))
	}
	return readers, nil
}

// Tracer returns a tracer under the given instrumentation name, defaulting
// to the package scope.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter under the given instrumentation name, defaulting to
// the package scope.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics and tears down the providers
// installed by Init. Safe to call when telemetry never started.
func Shutdown(ctx context.Context) {
	for _, fn := range closers {
		_ = fn(ctx)
	}
	closers = nil
}

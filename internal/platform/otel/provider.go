// Package otel wires the OpenTelemetry trace pipeline for the discovery
// services.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Environment variables controlling the trace pipeline.
const (
	// EnvEndpoint points the OTLP HTTP exporter at a collector. Tracing
	// stays off while it is unset.
	EnvEndpoint = "INSTA_AGENTS_OTEL_ENDPOINT"
	// EnvEnabled set to "false" turns tracing off even when an endpoint
	// is configured.
	EnvEnabled = "INSTA_AGENTS_OTEL_ENABLED"
)

// Setup installs the global tracer provider for the service and returns
// a shutdown function that flushes pending spans. Without an endpoint
// the returned shutdown is a no-op and no global provider is registered.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(EnvEnabled), "false") {
		return noop, nil
	}
	endpoint := strings.TrimSpace(os.Getenv(EnvEndpoint))
	if endpoint == "" {
		return noop, nil
	}

	provider, err := newTracerProvider(ctx, serviceName, endpoint)
	if err != nil {
		return noop, err
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider.Shutdown, nil
}

func newTracerProvider(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

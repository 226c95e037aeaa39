package telemetry

import (
	"context"
	"log"

	"chordmesh/internal/config"
	"chordmesh/internal/ring"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// InitTracer wires a tracer provider for serviceName, tagging every span
// with nodeID. Only the stdout exporter is supported: the grpc/otlp and
// jaeger transports the teacher offered depended on the gRPC stack this
// module drops (see DESIGN.md), and spec.md names no span collector.
func InitTracer(cfg config.TelemetryConfig, serviceName string, nodeID ring.Id) func(context.Context) error {
	if !cfg.Tracing.Enabled {
		log.Println("tracing disabled")
		return func(context.Context) error { return nil }
	}

	attrs := append(
		[]attribute.KeyValue{
			semconv.ServiceNameKey.String(serviceName),
		},
		IDAttributes("chord.node.id", nodeID)...,
	)

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		log.Fatalf("telemetry: failed to build resource: %v", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("telemetry: failed to init stdout exporter: %v", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp.Shutdown
}

// IDAttributes renders a ring id as a single span attribute under key.
func IDAttributes(key string, id ring.Id) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(key, id.Hex())}
}

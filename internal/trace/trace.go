package trace

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "llm-signal-advisor"

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
	spanFile       *os.File
)

// Init exports spans when LOG_TRACING_ENABLED is "true", to the file named
// by LOG_TRACING_FILE or to stdout.
func Init() error {
	if getEnv("LOG_TRACING_ENABLED", "false") != "true" {
		enabled = false
		return nil
	}

	var w io.Writer = os.Stdout
	if path := os.Getenv("LOG_TRACING_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		spanFile = f
		w = f
	}
	return InitWithWriter(w)
}

// InitWithWriter enables tracing with spans written as JSON to w.
func InitWithWriter(w io.Writer) error {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	enabled = true
	return nil
}

// Shutdown flushes pending spans and disables tracing.
func Shutdown(ctx context.Context) error {
	var err error
	if tracerProvider != nil {
		err = tracerProvider.Shutdown(ctx)
		tracerProvider = nil
	}
	if spanFile != nil {
		if cerr := spanFile.Close(); err == nil {
			err = cerr
		}
		spanFile = nil
	}
	enabled = false
	tracer = nil
	return err
}

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

// GetTraceFields returns the IDs of the span carried by ctx, if any.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", "", false
	}
	return span.SpanContext().TraceID().String(),
		span.SpanContext().SpanID().String(),
		true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"llm-signal-advisor/internal/trace"
)

var (
	// Global logger instance, usable before Init so packages can log in tests
	globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	// Whether detailed logging (debug lines, caller source) is enabled
	detailedLogging bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // Enable debug logs with caller source
	Output          io.Writer
}

// Init initializes the global logger based on environment variables
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
	}
}

// InitWithConfig initializes the logger with specific configuration
func InitWithConfig(config LogConfig) error {
	detailedLogging = config.DetailedLogging

	level := parseLogLevel(config.Level)
	if detailedLogging {
		level = slog.LevelDebug
	}
	// Source is added by logWithTrace so wrappers report their caller
	opts := &slog.HandlerOptions{Level: level, AddSource: false}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Debug logs a debug message; dropped unless detailed logging is on
func Debug(ctx context.Context, msg string, args ...any) {
	DebugSkip(ctx, 1, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 2, args...)
}

// ErrorWithErr logs an error message with an error object and marks the span failed
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	ErrorWithErrSkip(ctx, 1, msg, err, args...)
}

// DebugSkip, InfoSkip and ErrorWithErrSkip are for middleware wrappers:
// skip is the number of extra frames between the wrapper and the caller
// that should be reported as the log source.
func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 2+skip, args...)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 2+skip, args...)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 2+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	recordSpanError(ctx, err)
	allArgs := append([]any{"error", err}, args...)
	logWithTrace(ctx, slog.LevelError, msg, 2+skip, allArgs...)
}

func recordSpanError(ctx context.Context, err error) {
	if !trace.Enabled() || err == nil {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

type fieldsKey struct{}

// WithFields returns a context whose log lines all carry the given
// key-value pairs, after any already attached.
func WithFields(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	merged := append(append([]any{}, prev...), args...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// logWithTrace logs a message with trace ID and span ID if available.
// skip is the number of frames between runtime.Caller and the real caller.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fields, ok := ctx.Value(fieldsKey{}).([]any); ok {
		args = append(append([]any{}, fields...), args...)
	}
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}

// OperationTimer measures an operation and closes its span
type OperationTimer struct {
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

// StartOperation starts timing an operation with an OpenTelemetry span
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := trace.StartSpan(ctx, operation)
	if trace.Enabled() {
		span.SetAttributes(toAttributes(fields)...)
	}

	DebugSkip(ctx, 1, "Operation started", append([]any{"operation", operation}, fields...)...)

	return &OperationTimer{
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
		fields: fields,
	}
}

// End completes the operation timer and logs the duration
func (ot *OperationTimer) End(additionalFields ...any) {
	duration := time.Since(ot.start)

	if trace.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.SetAttributes(toAttributes(additionalFields)...)
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds())
	fields = append(fields, additionalFields...)
	DebugSkip(ot.ctx, 1, "Operation completed", fields...)
}

// EndWithError completes the operation timer with an error
func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	duration := time.Since(ot.start)

	if trace.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds(), "error", err)
	fields = append(fields, additionalFields...)
	logWithTrace(ot.ctx, slog.LevelError, "Operation failed", 2, fields...)
}

// GetContext returns the context with the span
func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}

// Decision logs the decision handed to the trading platform (always logged)
func Decision(ctx context.Context, symbol, typ, source string, fields ...any) {
	if trace.Enabled() {
		span := oteltrace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trading_decision", oteltrace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("typ", typ),
				attribute.String("source", source),
			))
		}
	}

	allFields := append([]any{
		"type", "DECISION",
		"symbol", symbol,
		"typ", typ,
		"source", source,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Trading decision made", 2, allFields...)
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	return detailedLogging
}

package log

import (
	"context"
	"os"

	"github.com/hyperdxio/opentelemetry-go/otelzap"
	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger tees an OTLP log core with a console core. When the exporter
// cannot be created the logger writes to the console only.
func InitLogger(ctx context.Context, level zapcore.Level) *zap.Logger {
	consoleDebugging := zapcore.Lock(os.Stdout)
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	console := zapcore.NewCore(consoleEncoder, consoleDebugging, level)

	logExporter, err := otlplogs.NewExporter(ctx)
	if err != nil {
		logger := zap.New(console)
		logger.Warn("OTLP log exporter unavailable, logging to console only", zap.Error(err))
		return logger
	}

	loggerProvider := sdk.NewLoggerProvider(
		sdk.WithBatcher(logExporter),
	)

	core := zapcore.NewTee(
		otelzap.NewOtelCore(loggerProvider),
		console,
	)
	return zap.New(core)
}

func LoggerWithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	)
}

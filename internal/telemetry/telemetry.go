// Package telemetry wires the engine's structured logging and OpenTelemetry
// instrumentation. There is no package-level logger or tracer: every
// component receives a *Telemetry explicitly from its constructor, per the
// "no module-level mutable state" design note.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry bundles the logger, tracer, and meter handed to every component
// constructor in the engine.
type Telemetry struct {
	Log    *zap.Logger
	Tracer trace.Tracer
	Meter  metric.Meter

	shutdown func(context.Context) error
}

// Level mirrors the TestPackage setting InternalTraceLevel: 0 disables extra
// spans/log verbosity, higher values sample and log more.
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelInfo
	LevelDebug
)

// New builds a Telemetry bundle. When tp is nil, a no-op tracer provider is
// used: spans are still created (so call sites never need nil checks) but
// cost nothing to export.
func New(level Level, tp *sdktrace.TracerProvider) (*Telemetry, error) {
	logger, err := newLogger(level)
	if err != nil {
		return nil, err
	}

	var tracer trace.Tracer
	var shutdown func(context.Context) error
	if tp != nil {
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer("github.com/nexustest/engine")
		shutdown = tp.Shutdown
	} else {
		tracer = otel.GetTracerProvider().Tracer("github.com/nexustest/engine")
		shutdown = func(context.Context) error { return nil }
	}

	return &Telemetry{
		Log:      logger,
		Tracer:   tracer,
		Meter:    otel.GetMeterProvider().Meter("github.com/nexustest/engine"),
		shutdown: shutdown,
	}, nil
}

func newLogger(level Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch level {
	case LevelOff:
		cfg.Level = zap.NewAtomicLevelAt(zap.FatalLevel + 1)
	case LevelError:
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case LevelInfo:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case LevelDebug:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// Shutdown flushes the logger and tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	_ = t.Log.Sync()
	return t.shutdown(ctx)
}

// StartSpan is a thin convenience wrapper kept in one place so every caller
// names spans consistently ("engine.<component>.<op>").
func (t *Telemetry) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, name)
}

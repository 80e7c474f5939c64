// Package otelx wires a single tracer used to span each pipeline stage and
// provider call, trimmed from the teacher's observability package down to
// the stdout exporter only — no OTLP collector endpoint is part of this
// system's contract.
package otelx

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/domainscout/core/internal/platform/logger"
)

const tracerName = "domainscout"

var (
	initOnce sync.Once
	shutdown func(context.Context) error
)

// Init sets the global tracer provider if OTEL_ENABLED is set, and returns
// a shutdown func safe to defer even when tracing never started.
func Init(ctx context.Context, log *logger.Logger, serviceVersion string) func(context.Context) error {
	initOnce.Do(func() {
		if !enabled() {
			shutdown = func(context.Context) error { return nil }
			return
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			attribute.String("service.name", tracerName),
			attribute.String("service.version", serviceVersion),
		))
		if err != nil {
			log.Warn("otelx: resource init failed, tracing disabled", "error", err.Error())
			shutdown = func(context.Context) error { return nil }
			return
		}

		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Warn("otelx: exporter init failed, tracing disabled", "error", err.Error())
			shutdown = func(context.Context) error { return nil }
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdown = tp.Shutdown
		log.Info("otelx: tracing initialized", "sample_ratio", sampleRatio())
	})
	return shutdown
}

// Tracer returns the package-scoped tracer; safe to call whether or not
// Init ran (the no-op tracer provider is the otel default).
func Tracer() trace.Tracer { return otel.Tracer(tracerName) }

// StartStage is a thin wrapper so pipeline/provider call sites read as one
// line instead of importing trace directly.
func StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, stage)
}

func enabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func sampleRatio() float64 {
	v := strings.TrimSpace(os.Getenv("OTEL_SAMPLER_RATIO"))
	if v == "" {
		return 0.1
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0.1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

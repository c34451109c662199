package otel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Settings is the tracing configuration taken from the standard OTEL_* variables.
type Settings struct {
	Disabled    bool
	ServiceName string
	Protocol    string // "grpc" or "http/protobuf"
	Endpoint    string
	Sampler     string
	SamplerArg  string
}

// Enabled reports whether spans should be exported. Without an endpoint there is nowhere to
// send them, so only context propagation is installed.
func (s Settings) Enabled() bool {
	return !s.Disabled && s.Endpoint != ""
}

// SettingsFromEnv reads Settings, filling in the SDK defaults.
func SettingsFromEnv() Settings {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return Settings{
		Disabled:    os.Getenv("OTEL_SDK_DISABLED") == "true",
		ServiceName: envOr("OTEL_SERVICE_NAME", "medvault"),
		Protocol:    envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Endpoint:    endpoint,
		Sampler:     envOr("OTEL_TRACES_SAMPLER", "parentbased_always_on"),
		SamplerArg:  envOr("OTEL_TRACES_SAMPLER_ARG", "1.0"),
	}
}

// Init installs the global tracer provider and W3C propagators. The returned func flushes and
// shuts the provider down. A broken exporter setup is logged and leaves propagation-only
// tracing in place; it never stops the service from starting.
func Init(ctx context.Context, logger *slog.Logger) (func(context.Context) error, error) {
	return InitWithSettings(ctx, SettingsFromEnv(), logger)
}

// InitWithSettings is Init with explicit settings.
func InitWithSettings(ctx context.Context, s Settings, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	noop := func(context.Context) error { return nil }

	if !s.Enabled() {
		logger.Info("tracing_configured", "tracing_enabled", false)
		return noop, nil
	}

	exporter, err := newExporter(ctx, s.Protocol)
	if err != nil {
		logger.Error("tracing_init_failed", "error", err.Error())
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(s.sampler()),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing_configured",
		"tracing_enabled", true,
		"service_name", s.ServiceName,
		"otlp_protocol", s.Protocol,
		"otlp_endpoint", s.Endpoint,
		"sampler", s.Sampler,
		"sampler_arg", s.SamplerArg,
	)
	return tp.Shutdown, nil
}

// newExporter builds the OTLP exporter; endpoint and headers come from the exporter's own env vars.
func newExporter(ctx context.Context, protocol string) (*otlptrace.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func (s Settings) sampler() trace.Sampler {
	switch s.Sampler {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(parseRatio(s.SamplerArg))
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(parseRatio(s.SamplerArg)))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseRatio reads a sampling ratio, falling back to 1.0 when arg is empty or malformed.
func parseRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}

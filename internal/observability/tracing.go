package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// Shutdown releases telemetry resources.
type Shutdown func(ctx context.Context) error

// SetupTracing installs the global tracer provider. Without an OTLP endpoint spans are
// recorded by a provider with no exporter.
func SetupTracing(ctx context.Context, app config.AppConfig, cfg config.TelemetryConfig, logger *zap.Logger) (Shutdown, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", app.Name),
			attribute.String("service.version", app.Version),
			attribute.String("deployment.environment", app.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled && cfg.OTLPEndpoint != "" {
		endpoint := cfg.OTLPEndpoint
		insecure := true
		if strings.HasPrefix(endpoint, "https://") {
			endpoint = strings.TrimPrefix(endpoint, "https://")
			insecure = false
		} else {
			endpoint = strings.TrimPrefix(endpoint, "http://")
		}
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	} else {
		logger.Info("tracing exporter disabled")
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}

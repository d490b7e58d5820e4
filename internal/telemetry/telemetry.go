package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"busrelay/internal/config"
	"busrelay/internal/logging"
)

const (
	defaultEndpoint       = "localhost:4317"
	defaultMetricInterval = 10 * time.Second
	serviceNamespace      = "busrelay"
)

type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs OTLP/gRPC trace and metric providers as the otel globals,
// which is where the bus instruments record. With cfg.Enabled false the
// no-op globals stay in place.
func Setup(ctx context.Context, cfg config.ObservabilityConfig, logger logging.Logger) (ShutdownFunc, error) {
	if !cfg.Enabled {
		logger.Info("otel disabled")
		return noopShutdown, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	endpoint := resolveEndpoint(cfg)

	tp, err := newTracerProvider(ctx, endpoint, res)
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, endpoint, res, cfg.MetricInterval)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel configured",
		"otlp_endpoint", endpoint,
		"service_name", cfg.ServiceName,
		"service_env", cfg.ServiceEnv,
	)

	return flushAll(logger, providers{
		"tracer provider": tp.Shutdown,
		"meter provider":  mp.Shutdown,
	}), nil
}

type providers map[string]func(context.Context) error

// flushAll shuts every provider down even when an earlier one fails.
func flushAll(logger logging.Logger, ps providers) ShutdownFunc {
	return func(ctx context.Context) error {
		var errs []error
		for name, shutdown := range ps {
			if err := shutdown(ctx); err != nil {
				logger.Error("failed to shutdown "+name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		return errors.Join(errs...)
	}
}

func newResource(ctx context.Context, cfg config.ObservabilityConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceNamespace(serviceNamespace),
			semconv.DeploymentEnvironment(cfg.ServiceEnv),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}
	return res, nil
}

// The collector is expected on a private network.
func dialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
}

func newTracerProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(dialOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, endpoint string, res *resource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(dialOptions()...),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	), nil
}

// resolveEndpoint prefers the service config, then the standard OTLP
// variable, then a local collector.
func resolveEndpoint(cfg config.ObservabilityConfig) string {
	if cfg.OtelEndpoint != "" {
		return cfg.OtelEndpoint
	}
	if e := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); e != "" {
		return e
	}
	return defaultEndpoint
}

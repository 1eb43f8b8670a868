package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Providers bundles the initialized observability handles. When no OTLP
// endpoint is configured the tracer and meter are no-ops; logging always
// works.
type Providers struct {
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter

	shutdownTimeout time.Duration
	shutdowns       []func(context.Context) error
}

// ScopeName is the instrumentation scope for all changegate telemetry.
const ScopeName = "changegate"

// Init builds logger, tracer, and meter providers from the config.
func Init(cfg Config) (Providers, error) {
	p := Providers{
		Logger:          newLogger(cfg),
		shutdownTimeout: time.Duration(cfg.ShutdownTimeoutSec) * time.Second,
	}

	if cfg.OTLPEndpoint == "" {
		p.Tracer = nooptrace.NewTracerProvider().Tracer(ScopeName)
		p.Meter = noopmetric.NewMeterProvider().Meter(ScopeName)

		return p, nil
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("changegate.mode", string(cfg.Mode)),
	)

	ctx := context.Background()

	traceProvider, err := newTraceProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, err
	}

	p.Tracer = traceProvider.Tracer(ScopeName)
	p.shutdowns = append(p.shutdowns, traceProvider.Shutdown)

	meterProvider, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		// Release the trace provider before reporting failure.
		_ = traceProvider.Shutdown(ctx)

		return Providers{}, err
	}

	p.Meter = meterProvider.Meter(ScopeName)
	p.shutdowns = append(p.shutdowns, meterProvider.Shutdown)

	return p, nil
}

// Shutdown flushes and releases all providers.
func (p Providers) Shutdown(ctx context.Context) error {
	if len(p.shutdowns) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()

	var errs []error

	for _, shutdown := range p.shutdowns {
		shutdownErr := shutdown(ctx)
		if shutdownErr != nil {
			errs = append(errs, shutdownErr)
		}
	}

	return errors.Join(errs...)
}

func newLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func newTraceProvider(ctx context.Context, cfg Config, res *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
	}

	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

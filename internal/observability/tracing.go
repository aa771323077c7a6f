package observability

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/internal/config"
)

const (
	tracesPath    = "/v1/traces"
	exportTimeout = 10 * time.Second
	maxQueueSize  = 2048
)

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
// With no endpoint configured it leaves the no-op provider in place and
// returns a shutdown that does nothing.
func SetupTracing(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if cfg.Endpoint == "" {
		logger.Debug("trace export disabled")
		return noop, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return noop, errors.Wrap(err, "create resource")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithURLPath(tracesPath),
	}
	if cfg.AuthHeader != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{"Authorization": cfg.AuthHeader}))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, errors.Wrap(err, "create trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(exportTimeout),
			sdktrace.WithMaxQueueSize(maxQueueSize),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("trace export enabled", zap.String("endpoint", cfg.Endpoint))
	return tp.Shutdown, nil
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Service manages OpenTelemetry providers and the Prometheus registry
type Service struct {
	config *Config

	// Providers
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	// Prometheus registry backing /metrics
	registry *prometheus.Registry

	// Resource
	resource *resource.Resource
}

// NewService creates a new telemetry service.
// Metrics are always collected for /metrics; tracing only when enabled.
func NewService(ctx context.Context, config *Config) (*Service, error) {
	service := &Service{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	service.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := service.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if config.TracingEnabled {
		if err := service.initTracing(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if err := service.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	service.initPropagation()

	return service, nil
}

// initResource creates the OpenTelemetry resource
func (s *Service) initResource() error {
	attrs := make([]attribute.KeyValue, 0)
	for key, value := range s.config.GetResourceAttributes() {
		attrs = append(attrs, attribute.String(key, value))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return fmt.Errorf("failed to merge with default resource: %w", err)
	}

	s.resource = res
	return nil
}

// initTracing initializes the tracing provider
func (s *Service) initTracing(ctx context.Context) error {
	logger := slogging.Get()
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(s.resource),
		sdktrace.WithSampler(s.config.Sampler()),
	}
	exporters := 0

	// Console exporter for development
	if s.config.ConsoleExporter {
		consoleExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create console trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(consoleExporter))
		exporters++
	}

	if s.config.OTLPEndpoint != "" {
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.config.OTLPEndpoint)}
		if s.config.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		}
		otlpExporter, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(otlpExporter))
		exporters++
	}

	if exporters == 0 {
		logger.Warn("Tracing enabled without exporters; spans are sampled but not exported")
	}

	s.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(s.tracerProvider)

	logger.Info("Tracing initialized with %d exporters, sample rate: %.2f", exporters, s.config.TraceSampleRate)
	return nil
}

// initMetrics initializes the metrics provider
func (s *Service) initMetrics(ctx context.Context) error {
	// Prometheus exporter for pull-based metrics
	prometheusExporter, err := otelprom.New(otelprom.WithRegisterer(s.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(s.resource),
		sdkmetric.WithReader(prometheusExporter),
	}

	// OTLP exporter for push-based metrics
	if s.config.TracingEnabled && s.config.OTLPEndpoint != "" {
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(s.config.OTLPEndpoint)}
		if s.config.OTLPInsecure {
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		otlpExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(s.config.MetricsInterval)),
		))
	}

	s.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(s.meterProvider)
	return nil
}

// initPropagation sets up W3C Trace Context and Baggage propagation
func (s *Service) initPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// TracerProvider returns the tracer provider, or a no-op provider when tracing is disabled
func (s *Service) TracerProvider() trace.TracerProvider {
	if s.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return s.tracerProvider
}

// MeterProvider returns the meter provider
func (s *Service) MeterProvider() metric.MeterProvider {
	return s.meterProvider
}

// MetricsHandler serves the Prometheus registry
func (s *Service) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Shutdown flushes and stops all telemetry providers
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	if s.tracerProvider != nil {
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if s.meterProvider != nil {
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}

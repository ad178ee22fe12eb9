package telemetry

import (
	"strings"
	"time"

	"github.com/ericfitz/oauthreg/internal/config"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config holds configuration options for OpenTelemetry
type Config struct {
	// Service information
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Tracing configuration
	TracingEnabled  bool
	TraceSampleRate float64
	ConsoleExporter bool

	// OTLP gRPC collector, host:port. Empty disables push export.
	OTLPEndpoint string
	OTLPInsecure bool

	// Push interval for OTLP metrics
	MetricsInterval time.Duration

	// Resource attributes
	ResourceAttributes map[string]string
}

// NewConfig derives telemetry settings from the application configuration
func NewConfig(cfg config.TelemetryConfig, isDev bool) *Config {
	endpoint, insecure := splitEndpoint(cfg.OTLPEndpoint)

	environment := "production"
	if isDev {
		environment = "development"
	}

	return &Config{
		ServiceName:     cfg.ServiceName,
		ServiceVersion:  cfg.ServiceVersion,
		Environment:     environment,
		TracingEnabled:  cfg.Enabled,
		TraceSampleRate: cfg.TraceSampleRate,
		ConsoleExporter: cfg.ConsoleExporter,
		OTLPEndpoint:    endpoint,
		OTLPInsecure:    insecure,
		MetricsInterval: cfg.MetricsInterval,
	}
}

// splitEndpoint strips the URL scheme the gRPC exporters do not accept.
// Plain http and bare host:port endpoints are treated as insecure.
func splitEndpoint(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimPrefix(raw, "https://"), false
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimPrefix(raw, "http://"), true
	default:
		return raw, true
	}
}

// GetResourceAttributes returns resource attributes including service information
func (c *Config) GetResourceAttributes() map[string]string {
	attrs := make(map[string]string, len(c.ResourceAttributes)+3)
	for k, v := range c.ResourceAttributes {
		attrs[k] = v
	}
	attrs["service.name"] = c.ServiceName
	attrs["service.version"] = c.ServiceVersion
	attrs["deployment.environment"] = c.Environment
	return attrs
}

// Sampler returns a parent-based sampler honoring TraceSampleRate
func (c *Config) Sampler() sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case c.TraceSampleRate >= 1.0:
		root = sdktrace.AlwaysSample()
	case c.TraceSampleRate <= 0.0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(c.TraceSampleRate)
	}
	return sdktrace.ParentBased(root)
}

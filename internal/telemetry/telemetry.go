// Package telemetry installs an OpenTelemetry tracer provider that exports
// delivery spans over OTLP/HTTP. Without this module the global no-op
// provider stays in place and spans cost nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/flemzord/tgcourier/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
)

// Version is reported as service.version. The CLI overrides it at link time.
var Version = "dev"

func init() {
	core.RegisterModule(&Telemetry{})
}

var (
	_ core.Configurable = (*Telemetry)(nil)
	_ core.Provisioner  = (*Telemetry)(nil)
	_ core.Validator    = (*Telemetry)(nil)
	_ core.Stopper      = (*Telemetry)(nil)
)

// Config holds the OTLP exporter settings.
type Config struct {
	// Endpoint is host:port, or a full URL such as http://collector:4318.
	Endpoint     string            `yaml:"endpoint"`
	Insecure     bool              `yaml:"insecure"`
	ServiceName  string            `yaml:"service_name"`
	Headers      map[string]string `yaml:"headers"`
	SampleRatio  float64           `yaml:"sample_ratio"`
	BatchTimeout time.Duration     `yaml:"batch_timeout"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = "tgcourier"
	}
	if c.SampleRatio <= 0 {
		c.SampleRatio = 1
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 5 * time.Second
	}
}

// Telemetry is the telemetry.otel module.
type Telemetry struct {
	config   Config
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
}

// ModuleInfo implements core.Module.
func (t *Telemetry) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otel",
		New: func() core.Module { return &Telemetry{} },
	}
}

// Configure implements core.Configurable.
func (t *Telemetry) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. It builds the exporter and installs
// the provider globally. Tracers handed out earlier by otel.Tracer pick up
// the new provider through the global delegate.
func (t *Telemetry) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.logger = ctx.Logger

	if t.config.Endpoint == "" {
		return errors.New("telemetry: endpoint is required")
	}

	opts, err := t.exporterOptions()
	if err != nil {
		return err
	}
	bg := context.Background()
	exporter, err := otlptracehttp.New(bg, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: exporter: %w", err)
	}

	res, err := resource.New(bg,
		resource.WithAttributes(
			attribute.String("service.name", t.config.ServiceName),
			attribute.String("service.version", Version),
		),
		resource.WithHost(),
		resource.WithProcessPID(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(t.config.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.config.SampleRatio))),
	)
	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx.RegisterService("telemetry.tracer_provider", t.provider)
	return nil
}

// Validate implements core.Validator.
func (t *Telemetry) Validate() error {
	if t.config.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio %v must be within (0, 1]", t.config.SampleRatio)
	}
	t.logger.Info("tracing enabled",
		"endpoint", t.config.Endpoint,
		"service_name", t.config.ServiceName,
		"sample_ratio", t.config.SampleRatio,
	)
	return nil
}

// Stop implements core.Stopper. Shutdown flushes spans still in the batcher.
func (t *Telemetry) Stop(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}

// exporterOptions accepts either host:port or a URL. A URL without a path
// keeps the exporter's default /v1/traces.
func (t *Telemetry) exporterOptions() ([]otlptracehttp.Option, error) {
	endpoint, insecure, urlPath := t.config.Endpoint, t.config.Insecure, ""
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("telemetry: endpoint: %w", err)
		}
		endpoint, insecure, urlPath = u.Host, u.Scheme == "http", strings.TrimSuffix(u.Path, "/")
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if urlPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(urlPath))
	}
	if len(t.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(t.config.Headers))
	}
	return opts, nil
}

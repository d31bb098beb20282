package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docgate/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const shutdownTimeout = 10 * time.Second

// Config describes where and how much to trace.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint   string
	SampleRate float64
	Enabled    bool
}

// ConfigFrom builds a Config from the loaded service configuration.
func ConfigFrom(cfg *config.Config, version string) Config {
	name := cfg.Observability.ServiceName
	if name == "" {
		name = cfg.Service.Name
	}
	return Config{
		ServiceName:    name,
		ServiceVersion: version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	}
}

func (c Config) validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("OTLP endpoint is required"))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be between 0 and 1, got %v", c.SampleRate))
	}
	return errors.Join(errs...)
}

// ProviderOption configures Setup.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	exporter sdktrace.SpanExporter
}

// WithExporter replaces the OTLP exporter, e.g. with an in-memory one.
func WithExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) {
		o.exporter = exp
	}
}

// Provider owns the SDK tracer provider installed by Setup.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// Setup installs a global tracer provider exporting to cfg.Endpoint. When
// tracing is disabled it installs nothing and returns a Provider whose
// Shutdown is a no-op.
func Setup(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.exporter == nil {
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("invalid tracing config: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		o.exporter = exp
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(o.exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{sdk: sdk}, nil
}

// Enabled reports whether Setup installed a provider.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// ForceFlush exports spans still held by the batcher.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush tracer provider: %w", err)
	}
	return nil
}

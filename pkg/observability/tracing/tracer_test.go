package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/nimburion/docgate/pkg/config"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if p.Enabled() {
		t.Error("disabled tracing must not install a provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing service", Config{Enabled: true, Endpoint: "localhost:4317", SampleRate: 1}, "service name"},
		{"missing endpoint", Config{Enabled: true, ServiceName: "docgate", SampleRate: 1}, "endpoint"},
		{"sample rate above one", Config{Enabled: true, ServiceName: "docgate", Endpoint: "localhost:4317", SampleRate: 1.5}, "sample rate"},
		{"negative sample rate", Config{Enabled: true, ServiceName: "docgate", Endpoint: "localhost:4317", SampleRate: -0.1}, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Setup(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSetup_ExportsStoreSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := Setup(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "docgate-test",
		ServiceVersion: "1.0.0",
		SampleRate:     1,
	}, WithExporter(exp))
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !p.Enabled() {
		t.Fatal("expected provider to be installed")
	}

	_, span := StartStoreSpan(context.Background(), OpRead, "users")
	Finish(span, nil)

	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	if err := p.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "read users" {
		t.Fatalf("expected one exported read span, got %+v", spans)
	}

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "docgate-test" {
		t.Errorf("expected service.name docgate-test, got %q", service)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.Name = "orders"
	cfg.Service.Environment = "staging"
	cfg.Observability.ServiceName = ""
	cfg.Observability.TracingEnabled = true
	cfg.Observability.TracingEndpoint = "collector:4317"
	cfg.Observability.TracingSampleRate = 0.5

	got := ConfigFrom(cfg, "v1.2.3")
	want := Config{
		ServiceName:    "orders",
		ServiceVersion: "v1.2.3",
		Environment:    "staging",
		Endpoint:       "collector:4317",
		SampleRate:     0.5,
		Enabled:        true,
	}
	if got != want {
		t.Fatalf("ConfigFrom() = %+v, want %+v", got, want)
	}

	cfg.Observability.ServiceName = "orders-tracing"
	if got := ConfigFrom(cfg, "").ServiceName; got != "orders-tracing" {
		t.Errorf("expected observability service name to win, got %q", got)
	}
}

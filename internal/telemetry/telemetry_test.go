package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_NoEndpoint(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	before := otel.GetTracerProvider()

	shutdown := Setup(context.Background(), "slalog", "test")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("tracer provider should not change without an endpoint")
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	t.Setenv(EnvEndpoint, "127.0.0.1:4317")
	t.Setenv(EnvInsecure, "true")
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown := Setup(context.Background(), "slalog", "test")
	if otel.GetTracerProvider() == before {
		t.Error("expected a tracer provider to be installed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

package tracing

import (
	"fmt"

	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
)

// HoneycombSetup configures the global otel tracer provider to export to honeycomb.
// Endpoint and API key are read by otelconfig from the OTEL_* / HONEYCOMB_* env vars.
// The returned func flushes and shuts down the exporter.
func HoneycombSetup(serviceName string) (func(), error) {
	// enable multi-span attributes
	bsp := honeycomb.NewBaggageSpanProcessor()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(bsp),
	)
	if err != nil {
		return nil, fmt.Errorf("configure opentelemetry: %w", err)
	}

	return otelShutdown, nil
}

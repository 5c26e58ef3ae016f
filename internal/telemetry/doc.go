// Package telemetry provides OpenTelemetry tracing for projectd.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("projectd.orchestrator")
//
// When enabled, New installs the tracer provider and a W3C trace context
// propagator as the otel globals. When disabled, the global no-op provider
// stays in place.
//
// # Configuration
//
//	observability:
//	  tracing_enabled: true
//	  otlp_endpoint: "localhost:4317"
//	  otlp_protocol: grpc   # or http
//	  sample_rate: 0.25
//
// # Error Handling
//
// Exporter failures do not crash the daemon. The instance is marked degraded
// and falls back to the global provider.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry

// Package telemetry provides OpenTelemetry instrumentation for wardend.
//
// # Overview
//
// This package implements distributed tracing and metrics collection using the
// OpenTelemetry Go SDK. Telemetry data is exported to an OTEL Collector over
// OTLP (gRPC or http/protobuf).
//
// # Usage
//
// Create telemetry instance:
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// Instrumented code uses the global otel.Tracer/otel.Meter; New installs the
// configured providers globally so no plumbing is needed at call sites.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  service_name: "wardend"
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not crash the application. If a provider cannot be
// initialized, the instance degrades gracefully and the globals stay no-op.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry

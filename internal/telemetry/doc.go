// Package telemetry exports cleaning pass spans and HTTP metrics over
// OTLP, via gRPC or HTTP/protobuf.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
// While disabled, Tracer and Meter return the global providers. Tests use
// NewTestTelemetry, which keeps spans and metrics in memory.
package telemetry

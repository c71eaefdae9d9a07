// Package otel publishes goGate engine metrics through OpenTelemetry
// asynchronous instruments.
//
// The caller owns the MeterProvider and passes a Meter to [NewExporter].
package otel

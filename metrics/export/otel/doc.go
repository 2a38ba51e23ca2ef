// Package otel binds engine counters to OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per latency bucket. The caller owns the
// MeterProvider; the exporter never mutates engine state.
package otel

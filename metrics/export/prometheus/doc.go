// Package prometheus exposes engine counters and the validation latency
// histogram through a client_golang Collector.
//
// The collector reads [sessionauth.Engine.MetricsSnapshot] at scrape time;
// the engine's hot path only touches atomics.
package prometheus

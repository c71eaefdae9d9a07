// Package prometheus renders goGate engine metrics in the Prometheus text
// format. Counters are grouped into labeled gogate_*_total families and gate
// latency is published as gogate_gate_latency_seconds.
//
// Nothing is registered globally; callers mount [Exporter.Handler].
package prometheus

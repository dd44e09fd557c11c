// Package metrics defines the sinks that record dispatch results and flow
// runs. Sinks like PromSink and InfluxSink live in infra/metrics and can be
// combined with NewMultiSink; NewMetricsSink does so automatically when
// several sinks are configured.
package metrics

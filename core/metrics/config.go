package metrics

import "github.com/kilianp07/fuelops/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks" mapstructure:"sinks"`
	// PrometheusPort serves /metrics when set.
	PrometheusPort string `json:"prometheus_port" yaml:"prometheus_port" mapstructure:"prometheus_port"`
}

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fuelops/core/factory"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
)

// promRegisterer receives the collectors of sinks built from configuration.
var promRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

// InfluxConfig is the conf block of an "influx" sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Validate requires an endpoint, an org and a bucket.
func (c InfluxConfig) Validate() error {
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return errors.New("influx sink needs url, org and bucket")
	}
	return nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	_ = coremetrics.RegisterMetricsSink("prometheus", newPromSinkFromConf)
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxSinkFromConf)
}

func newPromSinkFromConf(map[string]any) (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(coremetrics.Config{}, promRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newInfluxSinkFromConf falls back to a NopSink when the instance fails its
// health check.
func newInfluxSinkFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

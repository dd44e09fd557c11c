package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	"github.com/kilianp07/fuelops/infra/logger"
)

// InfluxSink writes dispatch results and flow runs to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatchResult writes one platform_dispatch point per result.
func (s *InfluxSink) RecordDispatchResult(res []coremetrics.DispatchResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		if err := s.writeAPI.WritePoint(ctx, dispatchPoint(r)); err != nil {
			return err
		}
	}
	return nil
}

func dispatchPoint(r coremetrics.DispatchResult) *write.Point {
	p := write.NewPointWithMeasurement("platform_dispatch").
		AddTag("company_id", r.CompanyID).
		AddTag("task_type", r.TaskType).
		AddTag("mode", r.Mode).
		AddTag("success", strconv.FormatBool(r.Success)).
		AddTag("component", "gateway")
	if r.Outcome != "" {
		p = p.AddTag("outcome", r.Outcome)
	}
	p = p.AddField("decision_id", r.DecisionID).
		AddField("task_id", r.TaskID).
		AddField("platform_worker", r.PlatformWorker).
		AddField("effective_worker", r.EffectiveWorker).
		AddField("business_override", r.BusinessOverride).
		AddField("allocated", r.Allocated).
		AddField("candidates", r.Candidates).
		AddField("confidence", round3(r.Confidence)).
		AddField("duration_ms", round3(float64(r.Duration)/float64(time.Millisecond)))
	if r.Error != "" {
		p = p.AddField("error", r.Error)
	}
	return p.SetTime(r.Time)
}

// RecordFlowRun persists the end state of an orchestration flow run.
func (s *InfluxSink) RecordFlowRun(ev coremetrics.FlowRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("platform_flow_run").
		AddTag("flow_id", ev.FlowID).
		AddTag("step", ev.Step).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("event_id", ev.EventID)
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

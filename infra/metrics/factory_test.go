package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/factory"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
)

func useRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	prev := promRegisterer
	promRegisterer = reg
	t.Cleanup(func() { promRegisterer = prev })
	return reg
}

// healthyInflux answers the health check and collects written lines.
func healthyInflux(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"influxdb","message":"ready","status":"pass","checks":[],"version":"2.7.0","commit":"abc"}`))
		case "/api/v2/write":
			buf := new(bytes.Buffer)
			_, _ = buf.ReadFrom(r.Body)
			mu.Lock()
			lines = append(lines, strings.TrimSpace(buf.String()))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func TestFactoryBuildsPrometheusAndInflux(t *testing.T) {
	reg := useRegistry(t)
	srv, written := healthyInflux(t)

	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "prometheus"},
		{Type: "influx", Conf: map[string]any{"url": srv.URL, "token": "tok", "org": "org", "bucket": "platform"}},
	})
	require.NoError(t, err)
	multi, ok := sink.(*coremetrics.MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", sink)
	require.Len(t, multi.Sinks, 2)
	assert.IsType(t, &PromSink{}, multi.Sinks[0])
	assert.IsType(t, &InfluxSink{}, multi.Sinks[1])
	defer multi.Close()

	res := []coremetrics.DispatchResult{{
		DecisionID: "d1", TaskID: "T1", TaskType: "delivery", CompanyID: "C1",
		Outcome: "platform_accepted", Success: true, Allocated: true, Candidates: 2, Confidence: 0.5,
	}}
	require.NoError(t, sink.RecordDispatchResult(res))

	count, err := testutil.GatherAndCount(reg, "platform_company_dispatch_results_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	prom := multi.Sinks[0].(*PromSink)
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.results.WithLabelValues("C1", "delivery", "platform_accepted", "true")))

	lines := written()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "platform_dispatch,"), lines[0])
	assert.Contains(t, lines[0], `task_id="T1"`)
}

func TestFactoryRejectsIncompleteInflux(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": "http://localhost:8086"}}})
	assert.ErrorContains(t, err, "org and bucket")
}

func TestFactoryKnowsBuiltins(t *testing.T) {
	types := coremetrics.SinkTypes()
	for _, want := range []string{"influx", "nop", "prometheus"} {
		assert.Contains(t, types, want)
	}
}

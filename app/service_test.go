package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/config"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/events"
	"github.com/kilianp07/fuelops/core/gateway"
	"github.com/kilianp07/fuelops/core/orchestration"
)

const fixture = `delivery_orders:
  - id: T1
    restaurant_id: R1
    company_id: C1
    status: pending
workers:
  - id: W1
    name: Ana
    company_id: C1
    status: available
    worker_type: delivery
  - id: W2
    name: Bo
    company_id: C1
    status: available
    worker_type: ["delivery", "repair"]
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	cfg := &config.Config{
		Platform:      config.PlatformConfig{TakeoverMode: "shadow"},
		Orchestration: orchestration.Config{MaxRetries: orchestration.Retries(0)},
		Audit:         config.AuditConfig{Backend: config.AuditMemory},
		Store:         config.StoreConfig{Backend: config.StoreMemory, Fixture: path},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceDispatchThroughFlow(t *testing.T) {
	svc := newTestService(t)
	sub := svc.Bus().Subscribe()

	out, st, err := svc.Dispatch(context.Background(), gateway.Input{TaskID: "T1", TaskType: "delivery", CompanyID: "C1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "W1", out.PlatformSelectedWorker)
	assert.True(t, out.Allocated)
	assert.Equal(t, orchestration.StepCompleted, st.Step)

	var sawDispatch, sawFlow bool
	timeout := time.After(time.Second)
	for !(sawDispatch && sawFlow) {
		select {
		case e := <-sub:
			switch ev := e.(type) {
			case events.DispatchEvent:
				sawDispatch = ev.TaskID == "T1"
			case events.FlowEvent:
				sawFlow = ev.FlowID == gateway.DispatchFlowID && ev.Error == ""
			}
		case <-timeout:
			t.Fatalf("events missing: dispatch=%v flow=%v", sawDispatch, sawFlow)
		}
	}

	entries, err := svc.Audit.Query(context.Background(), audit.Query{TargetID: "T1"})
	require.NoError(t, err)
	actions := map[audit.Action]int{}
	for _, e := range entries {
		actions[e.Action]++
	}
	assert.Equal(t, 1, actions[audit.ActionDecisionTrace])
	assert.Equal(t, 1, actions[audit.ActionDispatchAllocate])
	assert.Equal(t, 1, actions[audit.ActionLearningRecord])
}

func TestServiceSecondDispatchConflicts(t *testing.T) {
	svc := newTestService(t)
	in := gateway.Input{TaskID: "T1", TaskType: "delivery", CompanyID: "C1"}
	_, _, err := svc.Dispatch(context.Background(), in)
	require.NoError(t, err)

	out, _, _ := svc.Dispatch(context.Background(), in)
	assert.False(t, out.Success)
	assert.Equal(t, gateway.CodeAllocationConflict, out.ErrorCode)
}

func TestServiceHandlesMQTTRequests(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.handleRequest(context.Background(), []byte(`{"task_id":"T1","task_type":"delivery","company_id":"C1"}`)))
	assert.Error(t, svc.handleRequest(context.Background(), []byte(`not json`)))
}

func TestServiceRejectsMissingFixture(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Fixture: "/does/not/exist.yaml"}, Audit: config.AuditConfig{Backend: config.AuditMemory}}
	cfg.SetDefaults()
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

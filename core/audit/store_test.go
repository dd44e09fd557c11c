package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/model"
)

func entryAt(t *testing.T, action Action, target string, at time.Time) Entry {
	t.Helper()
	e, err := NewEntry("actor-1", action, TargetTask, target, map[string]string{"target": target})
	require.NoError(t, err)
	e.CreatedAt = at
	return e
}

// exerciseLog runs the same contract against every Log implementation.
func exerciseLog(t *testing.T, l Log) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Append(ctx, entryAt(t, ActionDecisionTrace, "T1", base)))
	require.NoError(t, l.Append(ctx, entryAt(t, ActionDispatchAllocate, "T1", base.Add(time.Minute))))
	require.NoError(t, l.Append(ctx, entryAt(t, ActionDecisionTrace, "T2", base.Add(2*time.Minute))))

	all, err := l.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "T1", all[0].TargetID)
	assert.Equal(t, "T2", all[2].TargetID)
	assert.True(t, all[0].CreatedAt.Equal(base))

	traces, err := l.Query(ctx, Query{Action: ActionDecisionTrace})
	require.NoError(t, err)
	assert.Len(t, traces, 2)

	byTarget, err := l.Query(ctx, Query{TargetID: "T1"})
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	window, err := l.Query(ctx, Query{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, ActionDispatchAllocate, window[0].Action)

	latest, err := l.Query(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "T2", latest[0].TargetID)

	var meta map[string]string
	require.NoError(t, latest[0].Decode(&meta))
	assert.Equal(t, "T2", meta["target"])
}

func TestMemoryLog(t *testing.T) {
	l := NewMemoryLog()
	exerciseLog(t, l)
	assert.Equal(t, 3, l.Len())
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseLog(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseLog(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseLog(t, s)
}

func TestRotatingJSONLStoreReadsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// ~8KB of metadata per entry; 200 entries cross the 1MB rotation size.
	payload := make([]byte, 8*1024)
	for i := range payload {
		payload[i] = 'x'
	}
	for i := 0; i < 200; i++ {
		e, err := NewEntry("", ActionLearningRecord, "sample", fmt.Sprintf("S%d", i), string(payload))
		require.NoError(t, err)
		require.NoError(t, s.Append(context.Background(), e))
	}
	backups, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)

	out, err := s.Query(context.Background(), Query{Action: ActionLearningRecord})
	require.NoError(t, err)
	assert.Len(t, out, 200)
	assert.Equal(t, SystemActor, out[0].ActorID)
}

func TestTraceWriter(t *testing.T) {
	l := NewMemoryLog()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := model.DecisionTrace{
		DecisionID:     "d-1",
		InputSummary:   model.InputSummary{TaskID: "T1"},
		DecisionOutput: model.DecisionOutput{WorkerID: "W1"},
		Timestamp:      ts,
	}
	require.NoError(t, TraceWriter{Log: l}.WriteTrace(context.Background(), tr))

	entries, err := l.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionDecisionTrace, entries[0].Action)
	assert.Equal(t, "T1", entries[0].TargetID)
	assert.Equal(t, ts, entries[0].CreatedAt)

	traces, err := Traces(context.Background(), l, Query{TargetID: "T1"})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "d-1", traces[0].DecisionID)
	assert.Equal(t, "W1", traces[0].DecisionOutput.WorkerID)
	assert.Equal(t, SystemActor, entries[0].ActorID)
}

func TestTraceWriterUsesCaller(t *testing.T) {
	l := NewMemoryLog()
	tr := model.DecisionTrace{DecisionID: "d-2", InputSummary: model.InputSummary{TaskID: "T1", ActorID: "ops-7"}}
	require.NoError(t, TraceWriter{Log: l, Actor: "svc"}.WriteTrace(context.Background(), tr))
	require.NoError(t, TraceWriter{Log: l, Actor: "svc"}.WriteTrace(context.Background(), model.DecisionTrace{DecisionID: "d-3"}))

	entries, err := l.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ops-7", entries[0].ActorID)
	assert.Equal(t, "svc", entries[1].ActorID)
}

func TestRecord(t *testing.T) {
	l := NewMemoryLog()
	e, err := Record(context.Background(), l, "u-1", ActionBypassAttempt, TargetTask, "T9", map[string]string{"error": "boom"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1, l.Len())

	_, err = NewEntry("", ActionBypassAttempt, TargetTask, "T9", make(chan int))
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("platform_decision_trace")
	assert.True(t, ok)
	assert.Equal(t, ActionDecisionTrace, a)
	_, ok = ParseAction("PLATFORM_DELETE")
	assert.False(t, ok)
}

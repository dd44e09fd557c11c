package orchestration

import (
	"fmt"
	"time"
)

// Step labels written into State.Step.
const (
	StepCompleted   = "completed"
	StepUnknownFlow = "unknown_flow"
)

// StepLabel returns the label of the i-th step (zero-based) after it ran.
func StepLabel(i int) string { return fmt.Sprintf("step_%d", i) }

// FailedLabel returns the label of the i-th step after its final failure.
func FailedLabel(i int) string { return fmt.Sprintf("step_%d_failed", i) }

// Event triggers a flow.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// State is the observable progress of one flow run.
type State struct {
	FlowID   string `json:"flow_id"`
	EventID  string `json:"event_id"`
	Step     string `json:"step"`
	StepName string `json:"step_name,omitempty"`
	// Attempts counts attempts of the step that last ran.
	Attempts  int            `json:"attempts"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a copy with its own Data map.
func (s State) Clone() State {
	cp := s
	if s.Data != nil {
		cp.Data = make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			cp.Data[k] = v
		}
	}
	return cp
}

// Failed reports whether the flow stopped on a failed step.
func (s State) Failed() bool { return s.Error != "" }

// Set stores v under key, allocating Data when needed.
func (s *State) Set(key string, v any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = v
}

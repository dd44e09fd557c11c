package events

import "time"

// DispatchEvent is published after every gateway call.
type DispatchEvent struct {
	DecisionID       string    `json:"decision_id"`
	TaskID           string    `json:"task_id"`
	TaskType         string    `json:"task_type"`
	CompanyID        string    `json:"company_id"`
	Mode             string    `json:"mode"`
	PlatformWorker   string    `json:"platform_worker,omitempty"`
	EffectiveWorker  string    `json:"effective_worker,omitempty"`
	BusinessOverride bool      `json:"business_override"`
	Allocated        bool      `json:"allocated"`
	Outcome          string    `json:"outcome,omitempty"`
	Error            string    `json:"error,omitempty"`
	Time             time.Time `json:"time"`
}

// FlowEvent is published when an orchestration flow run ends.
type FlowEvent struct {
	FlowID  string    `json:"flow_id"`
	EventID string    `json:"event_id"`
	Step    string    `json:"step"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

package model

import (
	"strings"
	"time"
)

// TaskType identifies the kind of dispatchable work.
type TaskType string

const (
	TaskDelivery TaskType = "delivery"
	TaskRepair   TaskType = "repair"
	TaskRental   TaskType = "rental"
)

// ParseTaskType normalizes s into a TaskType. Unknown values are kept as-is
// (lower-cased) so new business task types pass through the platform.
func ParseTaskType(s string) TaskType {
	return TaskType(strings.ToLower(strings.TrimSpace(s)))
}

func (t TaskType) String() string { return string(t) }

// TaskContext carries the business fields the platform needs from a task row.
type TaskContext struct {
	RestaurantID     string `json:"restaurant_id,omitempty"`
	CompanyID        string `json:"company_id,omitempty"`
	AssignedWorkerID string `json:"assigned_worker_id,omitempty"`
	ServiceType      string `json:"service_type,omitempty"`
	// RequiredSkill overrides the skill derived from the task type.
	RequiredSkill string         `json:"required_skill,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// TaskModel is the uniform view of a delivery, repair or rental order.
type TaskModel struct {
	ID          string         `json:"id"`
	Type        TaskType       `json:"type"`
	Status      string         `json:"status"`
	Context     TaskContext    `json:"context"`
	Constraints map[string]any `json:"constraints,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Skill returns the skill tag a worker needs to take the task.
func (t TaskModel) Skill() string {
	if s := strings.ToLower(strings.TrimSpace(t.Context.RequiredSkill)); s != "" {
		return s
	}
	return string(t.Type)
}

// Clone returns a deep copy of the task.
func (t TaskModel) Clone() TaskModel {
	cp := t
	cp.Context.Extra = cloneMap(t.Context.Extra)
	cp.Constraints = cloneMap(t.Constraints)
	return cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

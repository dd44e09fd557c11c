package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of an audit entry.
type Action string

const (
	ActionDecisionTrace         Action = "PLATFORM_DECISION_TRACE"
	ActionDispatchAllocate      Action = "PLATFORM_DISPATCH_ALLOCATE"
	ActionLearningRecord        Action = "PLATFORM_LEARNING_RECORD"
	ActionBypassAttempt         Action = "PLATFORM_BYPASS_ATTEMPT"
	ActionOrchestrationDispatch Action = "PLATFORM_ORCHESTRATION_DISPATCH"
)

// Actions lists every known action.
var Actions = []Action{
	ActionDecisionTrace,
	ActionDispatchAllocate,
	ActionLearningRecord,
	ActionBypassAttempt,
	ActionOrchestrationDispatch,
}

// ParseAction returns the known action named s, ignoring case.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, true
		}
	}
	return "", false
}

// SystemActor is the actor id used when the platform acts on its own.
const SystemActor = "platform"

// Entry is one row of the audit log. Metadata is opaque JSON.
type Entry struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Action     Action          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewEntry marshals metadata and stamps the entry with a fresh id.
func NewEntry(actor string, action Action, targetType, targetID string, metadata any) (Entry, error) {
	if actor == "" {
		actor = SystemActor
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s metadata: %w", action, err)
	}
	return Entry{
		ID:         uuid.NewString(),
		ActorID:    actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Decode unmarshals the metadata into v.
func (e Entry) Decode(v any) error {
	if len(e.Metadata) == 0 {
		return errors.New("audit: empty metadata")
	}
	return json.Unmarshal(e.Metadata, v)
}

// Query filters entries. Zero fields match everything. Limit keeps the most
// recent matches.
type Query struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Action   Action    `json:"action,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	ActorID  string    `json:"actor_id,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// Match reports whether e passes the filters of q.
func (q Query) Match(e Entry) bool {
	if !q.Start.IsZero() && e.CreatedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.CreatedAt.After(q.End) {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.TargetID != "" && e.TargetID != q.TargetID {
		return false
	}
	if q.ActorID != "" && e.ActorID != q.ActorID {
		return false
	}
	return true
}

// finalize orders entries by creation time and applies the limit.
func (q Query) finalize(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[len(entries)-q.Limit:]
	}
	return entries
}

// Log persists entries. Implementations never update or delete.
type Log interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// Record builds an entry and appends it.
func Record(ctx context.Context, l Log, actor string, action Action, targetType, targetID string, metadata any) (Entry, error) {
	e, err := NewEntry(actor, action, targetType, targetID, metadata)
	if err != nil {
		return Entry{}, err
	}
	if err := l.Append(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("append %s: %w", action, err)
	}
	return e, nil
}

package model

import "strings"

// Location is an optional last known position of a worker.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// WorkerContext holds descriptive worker fields.
type WorkerContext struct {
	Name      string         `json:"name,omitempty"`
	Status    string         `json:"status,omitempty"`
	CompanyID string         `json:"company_id,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// WorkerModel is the uniform view of a service provider.
type WorkerModel struct {
	ID       string    `json:"id"`
	Skills   []string  `json:"skills"`
	Location *Location `json:"location,omitempty"`
	// Load is the current assignment count. Always 0 until assignment
	// tracking is wired into the worker rows.
	Load    int           `json:"load"`
	Context WorkerContext `json:"context"`
}

var availableStatuses = map[string]bool{
	"active":    true,
	"available": true,
	"online":    true,
	"idle":      true,
	"on_duty":   true,
}

// Available reports whether the worker status allows new assignments.
func (w WorkerModel) Available() bool {
	return availableStatuses[strings.ToLower(strings.TrimSpace(w.Context.Status))]
}

// HasSkill reports whether the worker carries the given skill tag.
func (w WorkerModel) HasSkill(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	for _, s := range w.Skills {
		if s == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the worker.
func (w WorkerModel) Clone() WorkerModel {
	cp := w
	cp.Skills = append([]string(nil), w.Skills...)
	if w.Location != nil {
		loc := *w.Location
		cp.Location = &loc
	}
	cp.Context.Extra = cloneMap(w.Context.Extra)
	return cp
}

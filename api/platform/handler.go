// Package platform exposes the platform layer over HTTP for operators:
// audit log queries, capability introspection and dispatch through the
// orchestration flow.
package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/gateway"
	"github.com/kilianp07/fuelops/core/logger"
	"github.com/kilianp07/fuelops/core/model"
	"github.com/kilianp07/fuelops/core/orchestration"
)

// Dispatcher runs one dispatch request. *gateway.DispatchFlow implements it.
type Dispatcher interface {
	Run(ctx context.Context, in gateway.Input) (gateway.Output, orchestration.State, error)
}

// Options collects the handler dependencies.
type Options struct {
	Audit    audit.Log
	Registry *capability.Registry
	Dispatch Dispatcher
	// Token is required as "Bearer <token>" when non-empty.
	Token string
	Log   logger.Logger
}

// DispatchResponse is the body of POST /api/platform/dispatch.
type DispatchResponse struct {
	gateway.Output
	FlowStep string `json:"flow_step"`
	StepName string `json:"step_name,omitempty"`
	Attempts int    `json:"attempts"`
}

// NewHandler returns the router for /api/platform.
func NewHandler(o Options) http.Handler {
	o.Log = logger.OrNop(o.Log)
	mux := http.NewServeMux()
	mux.Handle("GET /api/platform/audit", auditHandler(o))
	mux.Handle("GET /api/platform/capabilities", capabilitiesHandler(o))
	mux.Handle("POST /api/platform/dispatch", dispatchHandler(o))
	return requireToken(o.Token, mux)
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func auditHandler(o Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.Audit == nil {
			http.Error(w, "audit log not configured", http.StatusServiceUnavailable)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entries, err := o.Audit.Query(r.Context(), q)
		if err != nil {
			o.Log.Errorf("audit query: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []audit.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseQuery(r *http.Request) (audit.Query, error) {
	v := r.URL.Query()
	var q audit.Query
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if s := v.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return q, queryError("invalid " + name + ": " + err.Error())
			}
			*dst = t
		}
	}
	if a := v.Get("action"); a != "" {
		action, ok := audit.ParseAction(a)
		if !ok {
			return q, queryError("unknown action " + a)
		}
		q.Action = action
	}
	q.TargetID = v.Get("target_id")
	q.ActorID = v.Get("actor_id")
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, queryError("invalid limit " + s)
		}
		q.Limit = n
	}
	return q, nil
}

func capabilitiesHandler(o Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.Registry == nil {
			http.Error(w, "registry not configured", http.StatusServiceUnavailable)
			return
		}
		kinds := capability.Kinds
		if s := r.URL.Query().Get("kind"); s != "" {
			k, ok := capability.ParseKind(s)
			if !ok {
				http.Error(w, "unknown kind "+s, http.StatusBadRequest)
				return
			}
			kinds = []capability.Kind{k}
		}
		out := make(map[capability.Kind][]model.CapabilityMeta, len(kinds))
		for _, k := range kinds {
			metas := o.Registry.List(k)
			if metas == nil {
				metas = []model.CapabilityMeta{}
			}
			out[k] = metas
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func dispatchHandler(o Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.Dispatch == nil {
			http.Error(w, "dispatch not configured", http.StatusServiceUnavailable)
			return
		}
		var in gateway.Input
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		out, st, err := o.Dispatch.Run(r.Context(), in)
		if err != nil {
			o.Log.Warnf("dispatch flow for task %s ended at %s: %v", in.TaskID, st.StepName, err)
		}
		writeJSON(w, statusFor(out), DispatchResponse{Output: out, FlowStep: st.Step, StepName: st.StepName, Attempts: st.Attempts})
	})
}

// statusFor maps gateway error codes onto HTTP statuses. A no-candidates
// result is a valid recommendation and stays 200.
func statusFor(out gateway.Output) int {
	switch out.ErrorCode {
	case "", gateway.CodeNoCandidates:
		return http.StatusOK
	case gateway.CodeInvalidTaskID, gateway.CodeRejectedReasonRequired:
		return http.StatusBadRequest
	case gateway.CodeTaskNotFound:
		return http.StatusNotFound
	case gateway.CodeAllocationConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

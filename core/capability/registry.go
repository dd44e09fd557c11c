package capability

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kilianp07/fuelops/core/model"
)

var (
	ErrNilHandler  = errors.New("capability: nil handler")
	ErrInvalidMeta = errors.New("capability: id and version are required")
)

// ResolveOptions narrows the entry returned by Resolve.
type ResolveOptions struct {
	Version string `json:"version,omitempty"`
	Tenant  string `json:"tenant,omitempty"`
	Prefer  string `json:"prefer,omitempty"`
}

// Entry is a resolved capability.
type Entry[H Handler] struct {
	Meta    model.CapabilityMeta
	Handler H
}

type entry struct {
	meta    model.CapabilityMeta
	handler any
}

// Registry maps kinds to their registered entries in insertion order.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind][]entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Kind][]entry)}
}

// Register upserts the handler under meta.Key(). Re-registering a key
// replaces the handler in place.
func Register[H Handler](r *Registry, meta model.CapabilityMeta, h H) error {
	if isNilHandler(any(h)) {
		return fmt.Errorf("%w for %s", ErrNilHandler, meta.Key())
	}
	if strings.TrimSpace(meta.ID) == "" || strings.TrimSpace(meta.Version) == "" {
		return ErrInvalidMeta
	}
	if meta.TenantScope == "" {
		meta.TenantScope = model.GlobalScope
	}
	kind := KindOf[H]()
	key := meta.Key()

	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[kind]
	for i := range list {
		if list[i].meta.Key() == key {
			list[i] = entry{meta: meta, handler: h}
			return nil
		}
	}
	r.entries[kind] = append(list, entry{meta: meta, handler: h})
	return nil
}

// MustRegister is Register for bootstrap code paths.
func MustRegister[H Handler](r *Registry, meta model.CapabilityMeta, h H) {
	if err := Register(r, meta, h); err != nil {
		panic(err)
	}
}

// Resolve selects an entry of the kind served by H.
func Resolve[H Handler](r *Registry, opts ResolveOptions) (Entry[H], bool) {
	kind := KindOf[H]()
	r.mu.RLock()
	e, ok := r.selectEntry(kind, opts)
	r.mu.RUnlock()
	if !ok {
		return Entry[H]{}, false
	}
	h, ok := e.handler.(H)
	if !ok {
		return Entry[H]{}, false
	}
	return Entry[H]{Meta: e.meta, Handler: h}, true
}

func (r *Registry) selectEntry(kind Kind, opts ResolveOptions) (entry, bool) {
	list := r.entries[kind]
	if len(list) == 0 {
		return entry{}, false
	}
	if opts.Prefer != "" {
		prefix := opts.Prefer + "@"
		for _, e := range list {
			if strings.HasPrefix(e.meta.Key(), prefix) {
				return e, true
			}
		}
		return entry{}, false
	}
	if opts.Version != "" {
		suffix := "@" + opts.Version
		for _, e := range list {
			if strings.HasSuffix(e.meta.Key(), suffix) {
				return e, true
			}
		}
		return entry{}, false
	}
	if opts.Tenant != "" && opts.Tenant != model.GlobalScope {
		for _, e := range list {
			if e.meta.TenantScope == opts.Tenant {
				return e, true
			}
		}
		for _, e := range list {
			if e.meta.TenantScope == model.GlobalScope {
				return e, true
			}
		}
		return entry{}, false
	}
	return list[0], true
}

// List returns the metadata of every entry of kind, in insertion order.
func (r *Registry) List(kind Kind) []model.CapabilityMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.entries[kind]
	out := make([]model.CapabilityMeta, len(list))
	for i, e := range list {
		out[i] = e.meta
	}
	return out
}

// Unregister removes id@version from kind and reports whether it existed.
func (r *Registry) Unregister(kind Kind, id, version string) bool {
	key := id + "@" + version
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[kind]
	for i, e := range list {
		if e.meta.Key() == key {
			r.entries[kind] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries registered for kind.
func (r *Registry) Len(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[kind])
}

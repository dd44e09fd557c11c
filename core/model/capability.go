package model

// GlobalScope marks a capability available to every tenant.
const GlobalScope = "global"

// CapabilityMeta describes one registered capability implementation.
type CapabilityMeta struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	TenantScope string `json:"tenant_scope"`
	Description string `json:"description,omitempty"`
}

// Key returns the registry key id@version.
func (m CapabilityMeta) Key() string { return m.ID + "@" + m.Version }

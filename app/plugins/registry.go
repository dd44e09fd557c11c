package plugins

import (
	"github.com/kilianp07/fuelops/config"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/factory"
)

// AuditStoreFactory builds an audit log from raw config.
type AuditStoreFactory = factory.Factory[audit.Log]

// AuditStores holds the file and memory backed audit stores.
var AuditStores = factory.NewRegistry[audit.Log]()

func RegisterAuditStore(name string, f AuditStoreFactory) error {
	return AuditStores.Register(name, f)
}

// NewAuditStore builds the store selected by cfg.Backend. The postgres backend
// is not registered here since it needs a live pool.
func NewAuditStore(cfg config.AuditConfig) (audit.Log, error) {
	return AuditStores.Create(factory.ModuleConfig{Type: cfg.Backend, Conf: cfg.Conf()})
}

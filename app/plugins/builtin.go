package plugins

import (
	"github.com/kilianp07/fuelops/config"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/factory"
)

func init() {
	_ = RegisterAuditStore(config.AuditMemory, func(map[string]any) (audit.Log, error) {
		return audit.NewMemoryLog(), nil
	})
	_ = RegisterAuditStore(config.AuditJSONL, func(conf map[string]any) (audit.Log, error) {
		var ac config.AuditConfig
		if err := factory.Decode(conf, &ac); err != nil {
			return nil, err
		}
		return audit.NewJSONLStore(ac.Path)
	})
	_ = RegisterAuditStore(config.AuditRotating, func(conf map[string]any) (audit.Log, error) {
		var ac config.AuditConfig
		if err := factory.Decode(conf, &ac); err != nil {
			return nil, err
		}
		return audit.NewRotatingJSONLStore(ac.Path, ac.MaxSizeMB, ac.MaxBackups, ac.MaxAgeDays)
	})
	_ = RegisterAuditStore(config.AuditSQLite, func(conf map[string]any) (audit.Log, error) {
		var ac config.AuditConfig
		if err := factory.Decode(conf, &ac); err != nil {
			return nil, err
		}
		return audit.NewSQLiteStore(ac.Path)
	})
}

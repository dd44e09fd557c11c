package config

import "fmt"

// Audit backends.
const (
	AuditMemory   = "memory"
	AuditJSONL    = "jsonl"
	AuditRotating = "rotating"
	AuditSQLite   = "sqlite"
	AuditPostgres = "postgres"
)

// AuditConfig defines where audit entries are stored.
type AuditConfig struct {
	// Backend selects the store: memory, jsonl, rotating, sqlite or postgres.
	Backend string `json:"backend"`
	// Path is the file location for file based stores.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = AuditJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case AuditSQLite:
			c.Path = "audit.db"
		case AuditJSONL, AuditRotating:
			c.Path = "audit.jsonl"
		}
	}
	if c.Backend == AuditRotating && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	switch c.Backend {
	case AuditMemory, AuditPostgres:
		return nil
	case AuditJSONL, AuditRotating, AuditSQLite:
		if c.Path == "" {
			return fmt.Errorf("audit: path is required for backend %s", c.Backend)
		}
		return nil
	}
	return fmt.Errorf("audit: unknown backend %s", c.Backend)
}

// Conf returns the section as a module configuration map.
func (c AuditConfig) Conf() map[string]any {
	return map[string]any{
		"path":         c.Path,
		"max_size_mb":  c.MaxSizeMB,
		"max_backups":  c.MaxBackups,
		"max_age_days": c.MaxAgeDays,
	}
}

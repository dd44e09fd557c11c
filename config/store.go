package config

import "fmt"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects where tasks and workers are read from.
type StoreConfig struct {
	Backend string `json:"backend"`
	// Fixture is a YAML file loaded into the memory store.
	Fixture string `json:"fixture"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreMemory
	}
}

func (c StoreConfig) Validate() error {
	if c.Backend != StoreMemory && c.Backend != StorePostgres {
		return fmt.Errorf("store: unknown backend %s", c.Backend)
	}
	return nil
}

package config

import "fmt"

// APIConfig configures the ops HTTP server.
type APIConfig struct {
	Address string `json:"address"`
	// Token is the bearer token required on every request. Empty disables auth.
	Token           string `json:"token"`
	ReadTimeoutS    int    `json:"read_timeout_s"`
	ShutdownTimeout int    `json:"shutdown_timeout_s"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeoutS <= 0 {
		c.ReadTimeoutS = 10
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5
	}
}

func (c APIConfig) Validate() error {
	if c.ReadTimeoutS < 0 {
		return fmt.Errorf("api: read_timeout_s must be >= 0")
	}
	return nil
}

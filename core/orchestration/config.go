package orchestration

import (
	"fmt"
	"time"
)

const (
	DefaultTimeoutMS      = 30000
	DefaultMaxRetries     = 1
	DefaultRetryBackoffMS = 100
)

// Config bounds step execution.
type Config struct {
	TimeoutMS int `json:"timeout_ms" mapstructure:"timeout_ms"`
	// MaxRetries is the number of extra attempts after a failure. Nil means
	// DefaultMaxRetries.
	MaxRetries     *int `json:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMS int  `json:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// Retries returns a pointer usable as Config.MaxRetries.
func Retries(n int) *int { return &n }

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	if c.MaxRetries == nil {
		c.MaxRetries = Retries(DefaultMaxRetries)
	}
	if c.RetryBackoffMS <= 0 {
		c.RetryBackoffMS = DefaultRetryBackoffMS
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("orchestration: max_retries must be >= 0, got %d", *c.MaxRetries)
	}
	if c.TimeoutMS < 0 {
		return fmt.Errorf("orchestration: timeout_ms must be >= 0, got %d", c.TimeoutMS)
	}
	return nil
}

func (c Config) timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

func (c Config) retryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// maxRetries never goes below zero so the retry count stays bounded for
// configs that skipped Validate.
func (c Config) maxRetries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return max(*c.MaxRetries, 0)
}

package config

import (
	"fmt"
	"strings"

	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/gateway"
)

// PlatformConfig drives the dispatch gateway.
type PlatformConfig struct {
	// TakeoverMode is shadow, suggest or enforced. PLATFORM_TAKEOVER_MODE wins
	// over the file value.
	TakeoverMode    string                    `json:"takeover_mode"`
	StrategyVersion string                    `json:"strategy_version"`
	Match           capability.ResolveOptions `json:"match"`
	Evaluate        capability.ResolveOptions `json:"evaluate"`
	Allocate        capability.ResolveOptions `json:"allocate"`
	// Actor is written as actor_id on audit entries.
	Actor string `json:"actor"`
}

// SetDefaults applies the environment mode and defaults.
func (c *PlatformConfig) SetDefaults() {
	c.TakeoverMode = gateway.ModeFromEnv(c.TakeoverMode).String()
	if c.StrategyVersion == "" {
		c.StrategyVersion = gateway.DefaultStrategyVersion
	}
	if c.Actor == "" {
		c.Actor = "platform"
	}
}

// Validate rejects pins that cannot match any capability id.
func (c PlatformConfig) Validate() error {
	for name, o := range map[string]capability.ResolveOptions{"match": c.Match, "evaluate": c.Evaluate, "allocate": c.Allocate} {
		if strings.ContainsAny(o.Version, "@ ") || strings.ContainsAny(o.Prefer, " ") {
			return fmt.Errorf("platform.%s: invalid pin %+v", name, o)
		}
	}
	return nil
}

// Gateway converts the section into a gateway configuration.
func (c PlatformConfig) Gateway() gateway.Config {
	return gateway.Config{
		Mode:            gateway.ParseMode(c.TakeoverMode),
		StrategyVersion: c.StrategyVersion,
		Match:           c.Match,
		Evaluate:        c.Evaluate,
		Allocate:        c.Allocate,
	}
}

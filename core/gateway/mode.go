package gateway

import (
	"os"
	"strings"
)

// EnvTakeoverMode selects the takeover mode from the environment.
const EnvTakeoverMode = "PLATFORM_TAKEOVER_MODE"

// TakeoverMode controls the authority of the platform pick.
type TakeoverMode string

const (
	// ModeShadow records the platform pick but never blocks the business worker.
	ModeShadow TakeoverMode = "shadow"
	// ModeSuggest requires a rejection category when the business overrides.
	ModeSuggest TakeoverMode = "suggest"
	// ModeEnforced makes the platform pick authoritative.
	ModeEnforced TakeoverMode = "enforced"
)

// ParseMode returns the mode named s. Unknown values fall back to shadow.
func ParseMode(s string) TakeoverMode {
	switch m := TakeoverMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeShadow, ModeSuggest, ModeEnforced:
		return m
	}
	return ModeShadow
}

// ModeFromEnv reads PLATFORM_TAKEOVER_MODE, falling back to def when unset.
func ModeFromEnv(def string) TakeoverMode {
	if v, ok := os.LookupEnv(EnvTakeoverMode); ok && strings.TrimSpace(v) != "" {
		return ParseMode(v)
	}
	return ParseMode(def)
}

func (m TakeoverMode) String() string { return string(m) }

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	"github.com/kilianp07/fuelops/core/orchestration"
	"github.com/kilianp07/fuelops/infra/mqtt"
	"github.com/kilianp07/fuelops/infra/postgres"
	"github.com/kilianp07/fuelops/infra/queue"
)

type Config struct {
	Platform      PlatformConfig       `json:"platform"`
	Orchestration orchestration.Config `json:"orchestration"`
	Audit         AuditConfig          `json:"audit"`
	Postgres      postgres.Config      `json:"postgres"`
	Metrics       coremetrics.Config   `json:"metrics"`
	MQTT          mqtt.Config          `json:"mqtt"`
	Sentry        SentryConfig         `json:"sentry"`
	Queue         queue.Config         `json:"queue"`
	API           APIConfig            `json:"api"`
	Store         StoreConfig          `json:"store"`
}

// Load reads path (yaml or json), applies K_ prefixed environment overrides
// where "__" separates levels, then PLATFORM_TAKEOVER_MODE. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Platform.SetDefaults()
	c.Orchestration.SetDefaults()
	c.Audit.SetDefaults()
	c.Postgres.SetDefaults()
	c.MQTT.SetDefaults()
	c.Queue.SetDefaults()
	c.API.SetDefaults()
	c.Store.SetDefaults()
}

// Validate checks every section and cross-section requirements.
func (c Config) Validate() error {
	var errs []error
	for _, v := range []interface{ Validate() error }{
		c.Platform, c.Orchestration, c.Audit, c.Postgres, c.MQTT, c.Queue, c.API, c.Store,
	} {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if !c.Postgres.Enabled() {
		if c.Store.Backend == StorePostgres {
			errs = append(errs, errors.New("store backend postgres requires postgres.dsn"))
		}
		if c.Audit.Backend == AuditPostgres {
			errs = append(errs, errors.New("audit backend postgres requires postgres.dsn"))
		}
		if c.Queue.Enabled {
			errs = append(errs, errors.New("queue requires postgres.dsn"))
		}
	}
	return errors.Join(errs...)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/gateway"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `platform:
  takeover_mode: suggest
  strategy_version: rule-v2
  match:
    tenant: C1
orchestration:
  timeout_ms: 500
  max_retries: 0
audit:
  backend: sqlite
  path: /tmp/audit.db
metrics:
  sinks:
    - type: "nop"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  qos: 1
store:
  backend: memory
  fixture: fixtures.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"mode", cfg.Platform.TakeoverMode, "suggest"},
		{"strategy", cfg.Platform.StrategyVersion, "rule-v2"},
		{"match tenant", cfg.Platform.Match.Tenant, "C1"},
		{"timeout", cfg.Orchestration.TimeoutMS, 500},
		{"retries", *cfg.Orchestration.MaxRetries, 0},
		{"backoff default", cfg.Orchestration.RetryBackoffMS, 100},
		{"audit backend", cfg.Audit.Backend, AuditSQLite},
		{"audit path", cfg.Audit.Path, "/tmp/audit.db"},
		{"metrics sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"qos", cfg.MQTT.QoS, byte(1)},
		{"topic default", cfg.MQTT.TopicPrefix, "platform/dispatch"},
		{"fixture", cfg.Store.Fixture, "fixtures.yaml"},
		{"api default", cfg.API.Address, ":8080"},
		{"actor default", cfg.Platform.Actor, "platform"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadJSONAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"platform":{"takeover_mode":"shadow"},"api":{"address":":9000"}}`)
	t.Setenv("K_API__ADDRESS", ":9100")
	t.Setenv("K_AUDIT__BACKEND", "memory")
	t.Setenv(gateway.EnvTakeoverMode, "enforced")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.API.Address)
	assert.Equal(t, AuditMemory, cfg.Audit.Backend)
	assert.Equal(t, "enforced", cfg.Platform.TakeoverMode)
	assert.Equal(t, gateway.ModeEnforced, cfg.Platform.Gateway().Mode)
}

func TestInvalidModeFallsBackToShadow(t *testing.T) {
	path := writeConfig(t, "config.yaml", "platform:\n  takeover_mode: takeover\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shadow", cfg.Platform.TakeoverMode)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, AuditJSONL, cfg.Audit.Backend)
	assert.Equal(t, "audit.jsonl", cfg.Audit.Path)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, gateway.DefaultStrategyVersion, cfg.Platform.StrategyVersion)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	cases := map[string]string{
		"audit backend":  "audit:\n  backend: s3\n",
		"store backend":  "store:\n  backend: redis\n",
		"postgres store": "store:\n  backend: postgres\n",
		"postgres audit": "audit:\n  backend: postgres\n",
		"queue":          "queue:\n  enabled: true\n",
		"negative retry": "orchestration:\n  max_retries: -1\n",
		"mqtt qos":       "mqtt:\n  broker: tcp://b:1883\n  qos: 3\n",
		"version pin":    "platform:\n  match:\n    version: a@b\n",
	}
	for name, data := range cases {
		_, err := Load(writeConfig(t, "config.yaml", data))
		assert.Error(t, err, name)
	}
}

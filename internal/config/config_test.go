package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, WorldModeSim, cfg.World.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Session.OuterDeadline)
	assert.Equal(t, 3*time.Second, cfg.Sandbox.HardCap)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	doc := `
server:
  addr: ":8088"
world:
  mode: remote
  host: mc.internal
session:
  outer_deadline: 5m
sandbox:
  hard_cap: 1500ms
store:
  driver: sqlite
  sqlite_path: /tmp/runs.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.Addr)
	assert.Equal(t, WorldModeRemote, cfg.World.Mode)
	assert.Equal(t, "mc.internal", cfg.World.Host)
	assert.Equal(t, "/v1/world", cfg.World.Path, "unset keys keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.Session.OuterDeadline)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sandbox.HardCap)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BRIDGE_ADDR":            ":9999",
		"BRIDGE_WORLD_SEED":      "42",
		"BRIDGE_OUTER_DEADLINE":  "2m",
		"BRIDGE_HARD_CAP":        "not-a-duration",
		"BRIDGE_METRICS_ENABLED": "true",
		"BRIDGE_CORS_ORIGINS":    "http://ui.local,http://ops.local",
	}
	cfg := DefaultConfig()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.EqualValues(t, 42, cfg.World.Seed)
	assert.Equal(t, 2*time.Minute, cfg.Session.OuterDeadline)
	assert.Equal(t, 3*time.Second, cfg.Sandbox.HardCap, "bad values fall back")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"http://ui.local", "http://ops.local"}, cfg.Server.CORSOrigins)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown mode":        func(c *Config) { c.World.Mode = "carrier-pigeon" },
		"unknown store":       func(c *Config) { c.Store.Driver = "mongo" },
		"postgres needs dsn":  func(c *Config) { c.Store.Driver = StorePostgres },
		"hard cap too large":  func(c *Config) { c.Sandbox.HardCap = time.Hour },
		"zero outer deadline": func(c *Config) { c.Session.OuterDeadline = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

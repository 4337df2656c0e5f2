// Package config loads bridge settings from YAML with BRIDGE_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrConfiguration = errors.New("invalid configuration")

const (
	WorldModeSim    = "sim"
	WorldModeRemote = "remote"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		LogLevel string `yaml:"log_level"`
		// CORSOrigins empty allows any origin.
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	World struct {
		Mode      string        `yaml:"mode"`
		Host      string        `yaml:"host"`
		Path      string        `yaml:"path"`
		AgentName string        `yaml:"agent_name"`
		TickRate  time.Duration `yaml:"tick_rate"`
		Seed      int64         `yaml:"seed"`
	} `yaml:"world"`

	Session struct {
		OuterDeadline  time.Duration `yaml:"outer_deadline"`
		SpawnTicks     int           `yaml:"spawn_ticks"`
		FixtureRadius  int           `yaml:"fixture_radius"`
		ChestThreshold int           `yaml:"chest_threshold"`
	} `yaml:"session"`

	Sandbox struct {
		HardCap time.Duration `yaml:"hard_cap"`
	} `yaml:"sandbox"`

	Liveness struct {
		StallTicks  int     `yaml:"stall_ticks"`
		Window      int     `yaml:"window"`
		MinDistance float64 `yaml:"min_distance"`
	} `yaml:"liveness"`

	Store struct {
		Driver         string `yaml:"driver"`
		DSN            string `yaml:"dsn"`
		SQLitePath     string `yaml:"sqlite_path"`
		MemoryCapacity int    `yaml:"memory_capacity"`
		Migrate        bool   `yaml:"migrate"`
	} `yaml:"store"`

	Programs struct {
		Dir string `yaml:"dir"`
	} `yaml:"programs"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	Transcript struct {
		Dir    string `yaml:"dir"`
		Prefix string `yaml:"prefix"`
	} `yaml:"transcript"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":3000"
	cfg.Server.LogLevel = "info"
	cfg.World.Mode = WorldModeSim
	cfg.World.Host = "localhost"
	cfg.World.Path = "/v1/world"
	cfg.World.AgentName = "bot"
	cfg.World.TickRate = 50 * time.Millisecond
	cfg.Session.OuterDeadline = 10 * time.Minute
	cfg.Session.SpawnTicks = 10
	cfg.Session.FixtureRadius = 128
	cfg.Session.ChestThreshold = 32
	cfg.Sandbox.HardCap = 3 * time.Second
	cfg.Liveness.StallTicks = 100
	cfg.Liveness.Window = 5
	cfg.Liveness.MinDistance = 1.5
	cfg.Store.Driver = StoreMemory
	cfg.Store.SQLitePath = "data/runs.db"
	cfg.Store.MemoryCapacity = 1000
	cfg.Store.Migrate = true
	cfg.Programs.Dir = "./programs"
	cfg.Metrics.Addr = ":9090"
	cfg.Transcript.Prefix = "steps"
	return cfg
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Server.Addr = stringEnv(getenv, "BRIDGE_ADDR", c.Server.Addr)
	c.Server.LogLevel = stringEnv(getenv, "BRIDGE_LOG_LEVEL", c.Server.LogLevel)
	if v := strings.TrimSpace(getenv("BRIDGE_CORS_ORIGINS")); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	c.World.Mode = stringEnv(getenv, "BRIDGE_WORLD_MODE", c.World.Mode)
	c.World.Host = stringEnv(getenv, "BRIDGE_WORLD_HOST", c.World.Host)
	c.World.Seed = int64(intEnv(getenv, "BRIDGE_WORLD_SEED", int(c.World.Seed)))
	c.Session.OuterDeadline = durationEnv(getenv, "BRIDGE_OUTER_DEADLINE", c.Session.OuterDeadline)
	c.Sandbox.HardCap = durationEnv(getenv, "BRIDGE_HARD_CAP", c.Sandbox.HardCap)
	c.Store.Driver = stringEnv(getenv, "BRIDGE_STORE", c.Store.Driver)
	c.Store.DSN = stringEnv(getenv, "BRIDGE_DB_DSN", c.Store.DSN)
	c.Store.SQLitePath = stringEnv(getenv, "BRIDGE_SQLITE_PATH", c.Store.SQLitePath)
	c.Programs.Dir = stringEnv(getenv, "BRIDGE_PROGRAMS_DIR", c.Programs.Dir)
	c.Metrics.Addr = stringEnv(getenv, "BRIDGE_METRICS_ADDR", c.Metrics.Addr)
	c.Transcript.Dir = stringEnv(getenv, "BRIDGE_TRANSCRIPT_DIR", c.Transcript.Dir)
	if v := strings.TrimSpace(getenv("BRIDGE_METRICS_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
}

func (c Config) Validate() error {
	switch c.World.Mode {
	case WorldModeSim, WorldModeRemote:
	default:
		return fmt.Errorf("%w: world.mode %q", ErrConfiguration, c.World.Mode)
	}
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: store.driver %q", ErrConfiguration, c.Store.Driver)
	}
	if c.Session.OuterDeadline <= 0 {
		return fmt.Errorf("%w: session.outer_deadline must be positive", ErrConfiguration)
	}
	if c.Sandbox.HardCap <= 0 {
		return fmt.Errorf("%w: sandbox.hard_cap must be positive", ErrConfiguration)
	}
	if c.Sandbox.HardCap >= c.Session.OuterDeadline {
		return fmt.Errorf("%w: sandbox.hard_cap must be below session.outer_deadline", ErrConfiguration)
	}
	if c.World.TickRate <= 0 {
		return fmt.Errorf("%w: world.tick_rate must be positive", ErrConfiguration)
	}
	return nil
}

func stringEnv(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(getenv func(string) string, key string, fallback int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func durationEnv(getenv func(string) string, key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

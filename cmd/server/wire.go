package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	migrations "agentbridge/db"
	gormrepo "agentbridge/internal/adapter/repo/gorm"
	memoryrepo "agentbridge/internal/adapter/repo/memory"
	sqliterepo "agentbridge/internal/adapter/repo/sqlite"
	"agentbridge/internal/adapter/world/remote"
	"agentbridge/internal/adapter/world/sim"
	"agentbridge/internal/app/ports"
	"agentbridge/internal/config"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type runStore struct {
	Runs  ports.RunRepository
	close func() error
}

func (s runStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func buildRunStore(ctx context.Context, cfg config.Config) (runStore, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := gormrepo.OpenPostgres(cfg.Store.DSN)
		if err != nil {
			return runStore{}, fmt.Errorf("open postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return runStore{}, err
		}
		if cfg.Store.Migrate {
			if err := gormrepo.ApplyMigrations(ctx, db, migrations.Migrations, "migrations"); err != nil {
				_ = sqlDB.Close()
				return runStore{}, fmt.Errorf("migrate: %w", err)
			}
		}
		return runStore{Runs: gormrepo.NewRunRepo(db), close: sqlDB.Close}, nil
	case config.StoreSQLite:
		repo, err := sqliterepo.Open(cfg.Store.SQLitePath)
		if err != nil {
			return runStore{}, fmt.Errorf("open sqlite %s: %w", cfg.Store.SQLitePath, err)
		}
		return runStore{Runs: repo, close: repo.Close}, nil
	default:
		return runStore{Runs: memoryrepo.NewRunRepo(memoryrepo.NewStore(cfg.Store.MemoryCapacity))}, nil
	}
}

func buildDialer(cfg config.Config) ports.WorldDialer {
	if cfg.World.Mode == config.WorldModeRemote {
		return remote.Dialer{Host: cfg.World.Host, Path: cfg.World.Path, AgentName: cfg.World.AgentName}
	}
	simCfg := sim.DefaultConfig()
	simCfg.TickRate = cfg.World.TickRate
	simCfg.Seed = cfg.World.Seed
	if cfg.World.AgentName != "" {
		simCfg.Name = cfg.World.AgentName
	}
	return sim.Dialer{Config: simCfg}
}

const bundledProgramsDir = "./programs"

// resolveProgramsDir prefers the configured directory and falls back to the
// repository's bundled programs when the configured one is missing.
func resolveProgramsDir(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" && isDir(configured) {
		return configured
	}
	if isDir(bundledProgramsDir) {
		if configured != "" {
			hlog.Warnf("programs dir %s not found, using %s", configured, bundledProgramsDir)
		}
		return bundledProgramsDir
	}
	if configured != "" {
		return configured
	}
	return bundledProgramsDir
}

func isDir(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && info.IsDir()
}

func parseLogLevel(s string) hlog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "warn", "warning":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}

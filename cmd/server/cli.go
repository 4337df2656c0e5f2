package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "agentbridge/internal/adapter/http"
	staticlibrary "agentbridge/internal/adapter/library/static"
	"agentbridge/internal/adapter/metrics"
	metricsinmem "agentbridge/internal/adapter/metrics/inmemory"
	metricsprom "agentbridge/internal/adapter/metrics/prom"
	"agentbridge/internal/adapter/transcript"
	"agentbridge/internal/app/diagnose"
	"agentbridge/internal/app/liveness"
	"agentbridge/internal/app/programs"
	"agentbridge/internal/app/runs"
	"agentbridge/internal/app/sandbox"
	"agentbridge/internal/app/session"
	"agentbridge/internal/config"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "agentbridge",
		Short:        "Run agent-submitted programs against a block world",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML)")

	root.AddCommand(newServeCmd(&configFile))
	root.AddCommand(newTranscriptCmd(&configFile))
	return root
}

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP bridge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newTranscriptCmd(configFile *string) *cobra.Command {
	var dir, prefix, sessionID string

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Print recorded step transcripts as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Transcript.Dir
			}
			if prefix == "" {
				prefix = cfg.Transcript.Prefix
			}
			if dir == "" {
				return fmt.Errorf("%w: transcript dir is not configured", config.ErrConfiguration)
			}
			return printTranscripts(cmd.OutOrStdout(), dir, prefix, sessionID)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "transcript directory (defaults to transcript.dir)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "transcript file prefix (defaults to transcript.prefix)")
	cmd.Flags().StringVar(&sessionID, "session", "", "only print steps of this session")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	hlog.SetLevel(parseLogLevel(cfg.Server.LogLevel))

	store, err := buildRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			hlog.Warnf("close run store: %v", cerr)
		}
	}()

	kpi := metricsinmem.NewRecorder()
	stepMetrics := metrics.Fanout{kpi}
	var collector *metricsprom.Collector
	if cfg.Metrics.Enabled {
		collector = metricsprom.NewCollector()
		stepMetrics = append(stepMetrics, collector)
	}

	library := staticlibrary.Provider{Root: resolveProgramsDir(cfg.Programs.Dir)}

	deps := session.Deps{
		Dialer:     buildDialer(cfg),
		Executor:   sandbox.NewExecutor(sandbox.Config{HardCap: cfg.Sandbox.HardCap}, library),
		Translator: diagnose.NewTranslator(),
		Liveness: liveness.NewMonitor(liveness.Config{
			StallTicks:  cfg.Liveness.StallTicks,
			Window:      cfg.Liveness.Window,
			MinDistance: cfg.Liveness.MinDistance,
		}, stepMetrics),
		Runs:    store.Runs,
		Metrics: stepMetrics,
	}
	var transcripts *transcript.Writer
	if cfg.Transcript.Dir != "" {
		transcripts = transcript.NewWriter(cfg.Transcript.Dir, cfg.Transcript.Prefix)
		deps.Transcript = transcripts
	}

	ctrl := session.NewController(session.Config{
		OuterDeadline:  cfg.Session.OuterDeadline,
		SpawnTicks:     cfg.Session.SpawnTicks,
		FixtureRadius:  cfg.Session.FixtureRadius,
		ChestThreshold: cfg.Session.ChestThreshold,
	}, deps)

	h := httpadapter.Handler{
		Session:     ctrl,
		RunsUC:      runs.UseCase{Runs: store.Runs},
		ProgramsUC:  programs.UseCase{Library: library},
		KPI:         kpi,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	s := server.Default(
		server.WithHostPorts(cfg.Server.Addr),
		server.WithExitWaitTime(shutdownGrace),
		server.WithDisablePrintRoute(true),
	)
	h.RegisterRoutes(s)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hlog.Infof("bridge listening on %s (world mode %s, store %s)", cfg.Server.Addr, cfg.World.Mode, cfg.Store.Driver)
		return s.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		ctrl.Stop(sctx)
		return s.Shutdown(sctx)
	})
	if collector != nil {
		ms := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(collector), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			hlog.Infof("metrics listening on %s", cfg.Metrics.Addr)
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return ms.Shutdown(sctx)
		})
	}

	err = g.Wait()
	if transcripts != nil {
		if cerr := transcripts.Close(); cerr != nil {
			hlog.Warnf("close transcript: %v", cerr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsMux(c *metricsprom.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return mux
}

func printTranscripts(out io.Writer, dir, prefix, sessionID string) error {
	files, err := transcript.Files(dir, prefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		err := transcript.ReadFile(path, func(line json.RawMessage) error {
			if sessionID != "" {
				var head struct {
					SessionID string `json:"session_id"`
				}
				if err := json.Unmarshal(line, &head); err != nil || head.SessionID != sessionID {
					return nil
				}
			}
			_, err := fmt.Fprintf(out, "%s\n", line)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

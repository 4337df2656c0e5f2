// Command worldsim serves the simulated block world over the world
// WebSocket protocol so the bridge can run in remote mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentbridge/internal/adapter/world/sim"
	"agentbridge/internal/transport/ws"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		path     string
		seed     int64
		tickRate time.Duration
	)
	cmd := &cobra.Command{
		Use:          "worldsim",
		Short:        "Serve a simulated world over WebSocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := sim.DefaultConfig()
			cfg.Seed = seed
			if tickRate > 0 {
				cfg.TickRate = tickRate
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, addr, path, sim.Dialer{Config: cfg})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":25565", "listen address")
	cmd.Flags().StringVar(&path, "path", "/v1/world", "WebSocket path")
	cmd.Flags().Int64Var(&seed, "seed", 0, "terrain seed")
	cmd.Flags().DurationVar(&tickRate, "tick-rate", sim.DefaultTickRate, "simulation tick interval")
	return cmd
}

func run(ctx context.Context, addr, path string, worlds sim.Dialer) error {
	mux := http.NewServeMux()
	mux.Handle(path, ws.NewServer(worlds).Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		hlog.Infof("worldsim listening on %s%s", addr, path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("worldsim: %w", err)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

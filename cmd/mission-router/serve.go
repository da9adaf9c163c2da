package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mission-router/core"
	"github.com/signalsfoundry/mission-router/internal/config"
	"github.com/signalsfoundry/mission-router/internal/logging"
	"github.com/signalsfoundry/mission-router/internal/observability"
	"github.com/signalsfoundry/mission-router/internal/rpc"
	"github.com/signalsfoundry/mission-router/terrainio"
)

func serveCmd() *cobra.Command {
	var (
		configPath  string
		terrainDir  string
		exportDir   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner over JSON-RPC on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if terrainDir != "" {
				cfg.TerrainDir = terrainDir
			}
			if exportDir != "" {
				cfg.ExportDir = exportDir
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&terrainDir, "terrain-dir", "", "terrain fixture directory (overrides config)")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "briefing artifact directory (overrides config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus /metrics listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewPlannerCollector(nil)
	if err != nil {
		return err
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	bundle, err := terrainio.LoadBundle(cfg.TerrainDir)
	if err != nil {
		log.Error(ctx, "terrain load failed",
			logging.String("dir", cfg.TerrainDir), logging.Err(err))
		return err
	}
	if bundle.Stale(time.Now()) {
		log.Warn(ctx, "terrain fixtures are stale",
			logging.String("provenance", bundle.Provenance().Format(time.RFC3339)))
	}

	planner := core.NewPlanner(bundle,
		core.WithLogger(log),
		core.WithSearchTimeout(time.Duration(cfg.SearchTimeout)),
		core.WithExportDir(cfg.ExportDir),
		core.WithMetrics(collector),
	)
	server := rpc.NewServer(planner, log, collector)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log.Info(ctx, "serving JSON-RPC on stdio",
		logging.String("session_id", planner.SessionID()),
		logging.String("terrain_dir", cfg.TerrainDir))
	err = server.Serve(ctx, os.Stdin, os.Stdout)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func serveMetrics(addr string, collector *observability.PlannerCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

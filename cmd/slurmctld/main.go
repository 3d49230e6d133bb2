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

	"github.com/cuemby/scontrol/pkg/api"
	"github.com/cuemby/scontrol/pkg/config"
	"github.com/cuemby/scontrol/pkg/health"
	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/manager"
	"github.com/cuemby/scontrol/pkg/metrics"
	"github.com/cuemby/scontrol/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// DefaultConfigPath is the controller configuration read at startup and on
// reconfigure
const DefaultConfigPath = "/etc/slurm/slurmctld.yaml"

// errAborted is returned after an abort request so the process exits nonzero
var errAborted = errors.New("aborted by request")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slurmctld",
	Short: "slurmctld - reference slurm controller",
	Long: `slurmctld serves cluster state (configuration, jobs, nodes, partitions
and job steps) to scontrol over gRPC and applies its updates.

State is kept in a bbolt database under data_dir and survives restarts.`,
	SilenceUsage: true,
	RunE:         runController,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"slurmctld version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().StringP("config", "c", DefaultConfigPath, "Controller configuration file")
	rootCmd.Flags().String("socket", "", "Serve read-only queries on this Unix socket")
	rootCmd.Flags().String("listen", "", "Override the gRPC listen address")
	rootCmd.Flags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

func runController(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	socket, _ := cmd.Flags().GetString("socket")
	listen, _ := cmd.Flags().GetString("listen")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.LoadController(cfgPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log.Init(log.Config{Level: log.ParseLevel(logLevel, log.InfoLevel), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("slurmctld")

	reg := metrics.NewRegistry(Version, metrics.ComponentStore, metrics.ComponentAPI)

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %v", err)
	}
	defer store.Close()
	reg.Watch(metrics.ComponentStore, true, func() error {
		_, err := store.Clocks()
		return err
	})

	mgr, err := manager.NewManager(&manager.Config{
		Controller: cfg,
		ConfigPath: cfgPath,
		Store:      store,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %v", err)
	}

	collector := metrics.NewCollector(mgr, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	monitor := health.NewMonitor(mgr, health.Config{
		Interval: cfg.Ping.Interval.Duration,
		Timeout:  cfg.Ping.Timeout.Duration,
		Retries:  cfg.Ping.Retries,
	})
	monitor.Start()
	defer monitor.Stop()
	reg.Watch(metrics.ComponentNodes, false, monitor.Check)

	errCh := make(chan error, 3)

	apiServer := api.NewServer(mgr, false)
	go func() {
		if err := apiServer.Start(cfg.Listen); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()
	defer apiServer.Stop()
	reg.Set(metrics.ComponentAPI, true, true, cfg.Listen)

	if socket != "" {
		localServer := api.NewServer(mgr, true)
		go func() {
			if err := localServer.StartUnix(socket); err != nil {
				errCh <- fmt.Errorf("local API server error: %v", err)
			}
		}()
		defer localServer.Stop()
	}

	if cfg.MetricsAddr != "" {
		httpServer := api.NewHealthServer(reg).Server(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics and health endpoints listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
		}()
	}

	logger.Info().
		Str("cluster", cfg.ClusterName).
		Str("listen", cfg.Listen).
		Str("data_dir", cfg.DataDir).
		Msg("controller running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case coreDump := <-mgr.ShutdownRequested():
		if coreDump {
			logger.Error().Msg("abort requested")
			reg.Set(metrics.ComponentAPI, true, false, "aborted")
			return errAborted
		}
		logger.Info().Msg("shutdown requested")
	case err := <-errCh:
		reg.Set(metrics.ComponentAPI, true, false, err.Error())
		return err
	}
	return nil
}

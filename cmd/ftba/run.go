package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semillacaramelo/ftba/pkg/agents/assetselection"
	"github.com/semillacaramelo/ftba/pkg/agents/execution"
	"github.com/semillacaramelo/ftba/pkg/agents/fundamental"
	"github.com/semillacaramelo/ftba/pkg/agents/risk"
	"github.com/semillacaramelo/ftba/pkg/agents/strategy"
	"github.com/semillacaramelo/ftba/pkg/agents/technical"
	"github.com/semillacaramelo/ftba/pkg/broker"
	"github.com/semillacaramelo/ftba/pkg/config"
	"github.com/semillacaramelo/ftba/pkg/gateway"
	"github.com/semillacaramelo/ftba/pkg/log"
	"github.com/semillacaramelo/ftba/pkg/metrics"
	"github.com/semillacaramelo/ftba/pkg/storage"
)

// startable is the shared lifecycle surface of every agent
type startable interface {
	Start(ctx context.Context) error
	Stop()
	ID() string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading system",
	Long: `Start the broker, gateway, and all six agents, then trade until
interrupted. SIGINT or SIGTERM closes open positions and shuts down
cleanly.

Examples:
  # Run against the simulated gateway with defaults
  ftba run

  # Run with a configuration file
  ftba run --config ftba.yaml`,
	RunE: runSystem,
}

func init() {
	runCmd.Flags().String("config", "", "Path to YAML configuration file")
}

func runSystem(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The config file sets logging unless flags overrode it.
	if !cmd.Flags().Changed("log-level") && !rootCmd.PersistentFlags().Changed("log-level") {
		log.Init(log.Config{
			Level:      cfg.System.LogLevel,
			JSONOutput: cfg.System.LogJSON,
		})
	}
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	// Persistence for strategy tuning.
	if err := os.MkdirAll(cfg.System.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.System.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	// Message broker.
	b := broker.New(broker.Config{
		CacheTTL:      cfg.Broker.CacheTTL(),
		InboxCapacity: cfg.Broker.InboxCapacity,
	})
	metrics.RegisterComponent("broker", true, "running")

	// Execution gateway.
	gw, err := buildGateway(cfg.Gateway)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := gw.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect gateway: %w", err)
	}
	defer gw.Disconnect()
	metrics.RegisterComponent("gateway", true, "connected")

	// Metrics and health endpoints.
	httpServer := serveMetrics(cfg.System.MetricsAddr)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	collector := metrics.NewCollector(b, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	// Analysis agents start first so the workflow has inputs before the
	// execution side comes up; shutdown runs in reverse.
	agents := []startable{
		assetselection.New(b, cfg.AssetSelection, gw),
		technical.New(b, cfg.Technical, gw),
		fundamental.New(b, cfg.Fundamental),
		risk.New(b, cfg.Risk),
		strategy.New(b, cfg.Strategy, store),
		execution.New(b, cfg.Execution, gw),
	}

	started := make([]startable, 0, len(agents))
	for _, a := range agents {
		if err := a.Start(ctx); err != nil {
			stopAll(started)
			return fmt.Errorf("failed to start %s: %w", a.ID(), err)
		}
		started = append(started, a)
	}
	logger.Info().Int("agents", len(started)).Msg("Trading system running")

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	stopAll(started)
	logger.Info().Msg("Shutdown complete")
	return nil
}

// stopAll stops agents in reverse start order so execution closes its
// positions while the rest of the fabric is still routing
func stopAll(agents []startable) {
	for i := len(agents) - 1; i >= 0; i-- {
		agents[i].Stop()
	}
}

func buildGateway(cfg config.GatewayConfig) (gateway.Gateway, error) {
	switch cfg.Type {
	case "deriv":
		return gateway.NewDeriv(gateway.DerivConfig{
			Endpoint: cfg.Endpoint,
			AppID:    cfg.AppID,
			APIToken: cfg.APIToken,
			Demo:     cfg.Demo,
		}), nil
	case "simulation", "":
		return gateway.NewSimulated(gateway.SimulatedConfig{
			SlippageModel:        gateway.SlippageModel(cfg.SlippageModel),
			FixedSlippagePips:    cfg.FixedSlippagePips,
			ProportionalSlippage: cfg.ProportionalSlippage,
		}), nil
	default:
		return nil, fmt.Errorf("unknown gateway type %q", cfg.Type)
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsLogger := log.WithComponent("metrics")
			metricsLogger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}

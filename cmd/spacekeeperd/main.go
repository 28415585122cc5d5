// spacekeeperd reconciles browser windows against durable named sessions
// ("spaces") and serves the result over a local WebSocket API.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spacekeeper/spacekeeperd/internal/api"
	"github.com/spacekeeper/spacekeeperd/internal/config"
	"github.com/spacekeeper/spacekeeperd/internal/platform"
	"github.com/spacekeeper/spacekeeperd/internal/platform/cdp"
	"github.com/spacekeeper/spacekeeperd/internal/reconcile"
	"github.com/spacekeeper/spacekeeperd/internal/registry"
	"github.com/spacekeeper/spacekeeperd/internal/store"
	"github.com/spacekeeper/spacekeeperd/internal/telemetry"
)

var (
	cfgPath     string
	cfg         = config.DefaultConfig()
	chromePort  string
	extensionID string
	dbPath      string
)

var rootCmd = &cobra.Command{
	Use:     "spacekeeperd",
	Short:   "Reconcile browser windows against durable named sessions",
	Version: config.Version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file (hot-reloaded)")
	rootCmd.Flags().StringVar(&chromePort, "port", "", "Chrome remote debugging port (overrides config)")
	rootCmd.Flags().StringVar(&extensionID, "extension-id", "", "extension id (overrides config)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to session database (overrides config)")

	rootCmd.AddCommand(spacesctlCmd)
}

func run(cmd *cobra.Command, args []string) error {
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if chromePort != "" {
		cfg.ChromePort = chromePort
	}
	if extensionID != "" {
		cfg.ExtensionID = extensionID
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := telemetry.New(telemetry.Config{Level: cfg.LogLevel, FilePath: cfg.LogFilePath})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := registry.New(st, logger)
	metrics := telemetry.NewMetrics(reg.Collectors()...)

	adapter := cdp.New(cfg.ChromePort, logger)
	var plat platform.Windows = adapter

	engine := reconcile.New(reconcile.Config{
		ExtensionID:      cfg.ExtensionID,
		ExtensionVersion: config.Version,
		Debounce:         cfg.DebounceWindow,
		HistoryLimit:     cfg.HistoryLimit,
	}, st, reg, plat, logger, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("spacekeeperd: received shutdown signal")
		cancel()
	}()

	watcher := config.NewWatcher(cfgPath, cfg, logger)
	watcher.OnChange(func(updated *config.Config) {
		cfg = updated
		engine.Reinitialize(ctx)
	})
	if cfgPath != "" {
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("spacekeeperd: config watcher stopped: %v", err)
			}
		}()
	}

	dispatcher := api.NewDispatcher(engine, reg, plat)
	apiServer := api.NewServer(cfg.APIListenAddr, dispatcher, logger)

	errCh := make(chan error, 3)
	go func() { errCh <- adapter.Run(ctx) }()
	go func() { errCh <- engine.Run(ctx) }()
	go func() { errCh <- apiServer.ListenAndServe() }()

	if cfg.MetricsListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Infof("spacekeeperd: metrics listening on %s", cfg.MetricsListenAddr)
			if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
				logger.Warnf("spacekeeperd: metrics server stopped: %v", err)
			}
		}()
	}

	logger.Infof("spacekeeperd %s starting (chrome port %s, db %s, api %s)",
		config.Version, cfg.ChromePort, cfg.DBPath, cfg.APIListenAddr)

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			apiServer.Shutdown()
			return err
		}
	case <-ctx.Done():
	}
	apiServer.Shutdown()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/admin"
	"github.com/bastionwaf/bastion/internal/config"
	"github.com/bastionwaf/bastion/internal/exclusion"
	"github.com/bastionwaf/bastion/internal/gateway"
	"github.com/bastionwaf/bastion/internal/logging"
	"github.com/bastionwaf/bastion/internal/observability"
	"github.com/bastionwaf/bastion/internal/policy"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var modeOverride string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Bastion gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := applyModeOverride(cfg, modeOverride); err != nil {
				return err
			}
			return runGateway(cmd.Context(), configPath, cfg, modeOverride)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&modeOverride, "mode", "", "Override firewall mode (enforce|shadow)")

	return cmd
}

// newModeCmd returns a shortcut for "run --mode <mode>".
func newModeCmd(mode string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   mode,
		Short: fmt.Sprintf("Run the gateway in %s mode", mode),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := applyModeOverride(cfg, mode); err != nil {
				return err
			}
			return runGateway(cmd.Context(), configPath, cfg, mode)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func applyModeOverride(cfg *config.Config, mode string) error {
	switch mode {
	case "":
	case config.ModeEnforce, config.ModeShadow:
		cfg.Firewall.Mode = mode
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

func runGateway(ctx context.Context, configPath string, cfg *config.Config, modeOverride string) error {
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	backend, err := exclusion.OpenConfigured(cfg)
	if err != nil {
		return err
	}
	store, err := exclusion.NewStore(backend, logger.Named("exclusions"))
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer func() { _ = store.Close() }()

	gw, err := gateway.New(cfg, policy.NewEvaluator(store, nil))
	if err != nil {
		return err
	}
	gw.SetLogger(logger.Named("gateway"))

	if cfg.Logging.DecisionLog != "" {
		decisionLog, closer, err := logging.OpenDecisionLog(cfg.ResolvePath(cfg.Logging.DecisionLog))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		gw.SetDecisionLogger(decisionLog)
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, metricsSrv := startMetricsServer(cfg, logger)
	if metricsSrv != nil {
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}
	gw.SetMetrics(metrics)
	store.OnChange(func(r exclusion.Rules) {
		metrics.SetExclusionRules(len(r.Paths), len(r.QueryParamSets))
	})

	if cfg.Admin.Enabled {
		opts := admin.OptionsFromConfig(cfg.Admin)
		opts.Logger = logger.Named("admin")
		opts.Metrics = metrics
		adminSrv := admin.NewServer(cfg.Admin.Listen, store, opts)
		go func() {
			if err := adminSrv.Run(signalCtx); err != nil {
				logger.Error("Admin API stopped", zap.Error(err))
			}
		}()
	}

	go watchConfig(signalCtx, configPath, gw, store, modeOverride, logger)
	if path, ok := exclusion.SharedPath(backend); ok {
		go watchExclusions(signalCtx, store, path, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           gw,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening",
			zap.String("addr", cfg.Server.Listen),
			zap.String("mode", cfg.Firewall.EffectiveMode()),
			zap.Int("components", len(cfg.Firewall.Components)),
			zap.String("exclusion_backend", cfg.Exclusions.Backend))
		if cfg.Server.TLS.Enabled {
			serverErr <- srv.ListenAndServeTLS(cfg.ResolvePath(cfg.Server.TLS.CertFile), cfg.ResolvePath(cfg.Server.TLS.KeyFile))
			return
		}
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchConfig swaps in the firewall section of the config file whenever it
// changes and rereads the exclusion rules. Listener addresses, routes,
// upstreams and the exclusion backend need a restart.
func watchConfig(ctx context.Context, path string, gw *gateway.Gateway, store *exclusion.Store, modeOverride string, logger *zap.Logger) {
	onChange := func(cfg *config.Config) {
		if err := store.Reload(); err != nil {
			logger.Warn("Keeping previous exclusion rules", zap.Error(err))
		}
		if err := applyModeOverride(cfg, modeOverride); err != nil {
			logger.Warn("Ignoring config reload", zap.Error(err))
			return
		}
		if err := gw.ApplyFirewall(cfg.Firewall); err != nil {
			logger.Warn("Ignoring config reload", zap.Error(err))
			return
		}
		logger.Info("Firewall configuration reloaded",
			zap.String("mode", cfg.Firewall.EffectiveMode()),
			zap.Int("components", len(cfg.Firewall.Components)))
	}
	onError := func(err error) {
		logger.Warn("Ignoring invalid config reload", zap.Error(err))
	}

	if err := config.Watch(ctx, path, onChange, onError); err != nil {
		logger.Error("Config watcher stopped", zap.Error(err))
	}
}

// watchExclusions picks up rules written to the backend by another process,
// typically "bastion exclusions add-path".
func watchExclusions(ctx context.Context, store *exclusion.Store, path string, logger *zap.Logger) {
	onError := func(err error) {
		logger.Warn("Keeping previous exclusion rules", zap.Error(err))
	}
	if err := exclusion.Watch(ctx, store, path, onError); err != nil {
		logger.Error("Exclusions watcher stopped", zap.Error(err))
	}
}

func startMetricsServer(cfg *config.Config, logger *zap.Logger) (*observability.Metrics, *http.Server) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	return metrics, srv
}

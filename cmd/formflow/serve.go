package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formflow/formflow/config"
	"github.com/formflow/formflow/internal/metrics"
	"github.com/formflow/formflow/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FormFlow HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, level, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting FormFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector(metricsNamespace, logger)
	p, err := buildPipeline(cfg, collector, logger)
	if err != nil {
		return err
	}

	if configPath != "" {
		watcher, err := watchLogLevel(ctx, configPath, level, logger)
		if err != nil {
			logger.Warn("config watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	srv := NewServer(cfg, p, collector, logger)
	if err := srv.Start(); err != nil {
		return err
	}
	if err := srv.Wait(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("FormFlow stopped")
	return nil
}

// watchLogLevel 监听配置文件，变更后热更新日志级别。
// 其余配置项需重启生效。
func watchLogLevel(ctx context.Context, path string, level zap.AtomicLevel, logger *zap.Logger) (*config.FileWatcher, error) {
	watcher, err := config.NewFileWatcher(path, config.NewLoader().WithConfigPath(path),
		config.WithWatcherLogger(logger),
		config.WithReloadError(func(err error) {
			logger.Warn("config reload rejected, keeping previous settings", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	watcher.OnReload(func(cfg *config.Config) {
		next := parseLevel(cfg.Log.Level)
		if next != level.Level() {
			logger.Info("log level changed", zap.Stringer("from", level.Level()), zap.Stringer("to", next))
			level.SetLevel(next)
		}
	})
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher, nil
}

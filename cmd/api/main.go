// Command api is the LingoFlow translation gateway server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	apihttp "github.com/example/lingoflow/internal/api/http"
	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/language"
	"github.com/example/lingoflow/internal/model"
	"github.com/example/lingoflow/internal/monitor"
	"github.com/example/lingoflow/internal/observability"
	"github.com/example/lingoflow/internal/prompt"
	"github.com/example/lingoflow/internal/queue"
	"github.com/example/lingoflow/internal/shutdown"
	"github.com/example/lingoflow/internal/stats"
	"github.com/example/lingoflow/internal/tracing"
	"github.com/example/lingoflow/internal/translation"
)

const serviceVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lingoflow: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configDir := flag.String("config", config.Dir("configs"), "directory holding app.yaml, model.yaml, languages.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("PANIC", "error", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logger.Info("lingoflow starting",
		"config_dir", *configDir,
		"listen_addr", cfg.App.Server.ListenAddr,
		"provider", cfg.Model.Provider.Type,
		"switch_policy", cfg.SwitchPolicy(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (optional).
	traceProvider, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "lingoflow",
		ServiceVersion: serviceVersion,
		OTLPEndpoint:   cfg.App.Tracing.OTLPEndpoint,
		Enabled:        cfg.App.Tracing.Enabled,
		Logger:         logger,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without", "err", err)
		traceProvider, _ = tracing.Setup(ctx, tracing.Config{Logger: logger})
	}

	// Core components.
	registry := language.NewRegistry(cfg.Languages)
	builder := prompt.NewBuilder(cfg.Model.Prompts, registry)
	q := queue.New(cfg.MaxConcurrent(), cfg.MaxQueueSize())
	manager := model.NewManager(cfg, model.DefaultFactory(logger), q.Active, logger)
	mon := monitor.New()

	var snapshotStore stats.SnapshotStore
	var redisStore *stats.RedisStore
	if addr := cfg.App.Statistics.RedisAddr; addr != "" {
		redisStore = stats.NewRedisStore(addr, cfg.App.Statistics.RedisPassword, cfg.App.Statistics.RedisDB)
		snapshotStore = redisStore
		logger.Info("statistics snapshots mirrored to redis", "addr", addr)
	}
	window := stats.NewWindow(snapshotStore, logger)

	metrics := observability.New(
		func() int { return q.Stats().Active },
		func() int { return q.Stats().Waiting },
		manager.Progress,
	)

	coordinator := shutdown.New(q.Active, logger)
	coordinator.OnShutdown(manager.Unload)
	coordinator.OnShutdown(q.Clear)
	if redisStore != nil {
		coordinator.OnShutdown(func() {
			if cerr := redisStore.Close(); cerr != nil {
				logger.Warn("redis close failed", "err", cerr)
			}
		})
	}

	svc := translation.NewService(cfg, registry, builder, manager, q, window, translation.Options{
		Metrics:      metrics,
		Tracer:       traceProvider.Tracer("translation"),
		Logger:       logger,
		ShuttingDown: coordinator.IsShuttingDown,
	})

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Config:         cfg,
		Registry:       registry,
		Service:        svc,
		Manager:        manager,
		Queue:          q,
		Window:         window,
		Monitor:        mon,
		Shutdown:       coordinator,
		MetricsHandler: metrics.Handler(),
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.App.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.App.Server.ReadTimeout,
		WriteTimeout: cfg.App.Server.WriteTimeout,
		IdleTimeout:  cfg.App.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			serverErr <- serr
		}
	}()

	select {
	case serr := <-serverErr:
		return serr
	case <-ctx.Done():
	}

	logger.Info("signal received, shutting down")

	// Drain in-flight requests within the grace period, then run the
	// cleanup callbacks (model unload, queue clear).
	coordinator.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http server shutdown incomplete", "err", serr)
	}
	if terr := traceProvider.Shutdown(shutdownCtx); terr != nil {
		logger.Warn("trace provider shutdown failed", "err", terr)
	}

	logger.Info("lingoflow stopped")
	return nil
}

// newLogger builds the JSON logger writing to stdout and to a
// size-rotated file under the configured logs directory.
func newLogger(cfg *config.Config) *slog.Logger {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.App.Logging.Dir, "lingoflow.log"),
		MaxSize:    cfg.App.Logging.MaxSizeMB,
		MaxBackups: cfg.App.Logging.MaxBackups,
		Compress:   true,
	}
	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotated), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

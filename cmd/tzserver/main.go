package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/mohammed-shakir/tzwhere/internal/app"
	"github.com/mohammed-shakir/tzwhere/internal/core/config"
	"github.com/mohammed-shakir/tzwhere/internal/core/health"
	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/core/server"
	"github.com/mohammed-shakir/tzwhere/internal/engine"
	"github.com/mohammed-shakir/tzwhere/internal/logger"
	"github.com/mohammed-shakir/tzwhere/internal/metrics"
	"github.com/mohammed-shakir/tzwhere/internal/overlap"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "tzserver",
		Dataset:   cfg.BaseName,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting tzserver",
		"addr", cfg.Addr,
		"version", Version,
		"store", cfg.Store.Driver,
		"policy", cfg.Cache.Policy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rw, closeStore, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		appLog.Error("open store failed", "err", err)
		return 1
	}
	defer func() { _ = closeStore() }()

	var rep overlap.Reporter
	pub, err := app.OverlapPublisher(cfg.Overlap, appLog)
	if err != nil {
		appLog.Error("overlap publisher failed", "err", err)
		return 1
	}
	if pub != nil {
		rep = pub
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("overlap publisher close", "err", err)
			}
		}()
	}

	opts, err := app.EngineOptions(cfg, rw, rep, appLog)
	if err != nil {
		appLog.Error("invalid engine config", "err", err)
		return 1
	}
	eng, err := engine.New(ctx, opts)
	if err != nil {
		appLog.Error("engine init failed", "err", err)
		return 1
	}

	var ready atomic.Bool
	ready.Store(true)

	var prov *metrics.Provider
	if cfg.MetricsEnabled {
		prov = metrics.Init(metrics.Config{
			Enabled: true,
			Path:    os.Getenv("METRICS_PATH"),
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		prov.RegisterEngine(eng.Stats)
	}

	deps := server.Deps{
		Resolver: eng,
		Ready: health.ReadyFunc(func() (bool, string) {
			return ready.Load(), cfg.BaseName
		}),
		Metrics: prov,
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	ready.Store(false)
	appLog.Info("server stopped")
	return 0
}

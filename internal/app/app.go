// Package app assembles storage, engine and overlap reporting from config
// for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/tzwhere/internal/core/config"
	"github.com/mohammed-shakir/tzwhere/internal/engine"
	"github.com/mohammed-shakir/tzwhere/internal/overlap"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/storage/fsstore"
	"github.com/mohammed-shakir/tzwhere/internal/storage/redisstore"
	"github.com/mohammed-shakir/tzwhere/internal/tiles"
)

// OpenStore returns the configured blob backend and its closer.
func OpenStore(ctx context.Context, cfg config.StoreCfg) (storage.ReadWriter, func() error, error) {
	switch cfg.Driver {
	case "", "fs":
		dir, err := fsstore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return dir, func() error { return nil }, nil
	case "redis":
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(cli, cfg.Namespace), cli.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// EngineOptions maps config onto engine options. rw is both the source and
// the sink for a rebuilt index.
func EngineOptions(cfg config.Config, rw storage.ReadWriter, rep overlap.Reporter, log *slog.Logger) (engine.Options, error) {
	policy, err := tiles.ParsePolicy(cfg.Cache.Policy)
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.Options{
		Source: rw,
		Sink:   rw,
		Base:   cfg.BaseName,
		Tiles: tiles.Options{
			Eviction: tiles.Eviction{
				Policy:           policy,
				ClearProbability: cfg.Cache.ClearProb,
				MaxTiles:         cfg.Cache.MaxTiles,
			},
			LoadTimeout: cfg.Cache.LoadTimeout,
			Logger:      log,
		},
		DetectOverlaps:    cfg.Overlap.Detect,
		Reporter:          rep,
		OverlapResolution: cfg.Overlap.H3Res,
		Logger:            log,
	}
	return opts, nil
}

// OverlapPublisher starts the Kafka publisher when overlap events are
// enabled; it returns nil otherwise.
func OverlapPublisher(cfg config.OverlapCfg, log *slog.Logger) (*overlap.Publisher, error) {
	if !cfg.Detect || !cfg.EventsEnabled {
		return nil, nil
	}
	return overlap.NewPublisher(config.Brokers(cfg.Brokers), cfg.Topic, cfg.QueueSize, log)
}

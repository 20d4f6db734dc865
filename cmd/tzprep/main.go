// Command tzprep converts a timezone boundary GeoJSON file into the tiled
// dataset served by tzserver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/app"
	"github.com/mohammed-shakir/tzwhere/internal/core/config"
	"github.com/mohammed-shakir/tzwhere/internal/logger"
	"github.com/mohammed-shakir/tzwhere/internal/prep"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	in := flag.String("in", "", "input GeoJSON FeatureCollection (required)")
	exclude := flag.String("exclude", "", "comma separated regions to drop, e.g. Antarctica,Etc")
	flag.StringVar(&cfg.Store.DataDir, "out", cfg.Store.DataDir, "output directory (fs store)")
	flag.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "store driver: fs|redis")
	flag.StringVar(&cfg.BaseName, "base", cfg.BaseName, "dataset base name")
	flag.IntVar(&cfg.SplitDepth, "depth", cfg.SplitDepth, "quadtree split depth (0 writes a single file)")
	flag.Parse()

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "tzprep"}, os.Stderr)
	log := logger.NewSlog(&zl)

	if *in == "" {
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*in)
	if err != nil {
		log.Error("open input", "err", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	rw, closeStore, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Error("open store failed", "err", err)
		return 1
	}
	defer func() { _ = closeStore() }()

	start := time.Now()
	sum, err := prep.Run(ctx, f, rw, prep.Options{
		Base:    cfg.BaseName,
		Depth:   cfg.SplitDepth,
		Exclude: strings.Split(*exclude, ","),
		Logger:  log,
	})
	if err != nil {
		log.Error("prepare dataset failed", "err", err)
		return 1
	}
	fmt.Printf("%d zones, %d polygons, %d tiles (depth %d), %d features skipped in %s\n",
		sum.Zones, sum.Polygons, sum.Tiles, sum.Depth, sum.Skipped, time.Since(start).Round(time.Millisecond))
	return 0
}

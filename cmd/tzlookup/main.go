// Command tzlookup resolves coordinates given as lat,lng arguments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/app"
	"github.com/mohammed-shakir/tzwhere/internal/core/config"
	"github.com/mohammed-shakir/tzwhere/internal/engine"
	"github.com/mohammed-shakir/tzwhere/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	flag.StringVar(&cfg.Store.DataDir, "data", cfg.Store.DataDir, "dataset directory (fs store)")
	flag.StringVar(&cfg.Store.Driver, "store", cfg.Store.Driver, "store driver: fs|redis")
	flag.StringVar(&cfg.BaseName, "base", cfg.BaseName, "dataset base name")
	flag.StringVar(&cfg.Cache.Policy, "cache", cfg.Cache.Policy, "cache policy: off|full|per-run|per-run-lottery|lru")
	flag.BoolVar(&cfg.Overlap.Detect, "overlaps", cfg.Overlap.Detect, "report points claimed by several zones")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: tzlookup [flags] lat,lng [lat,lng ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "tzlookup"}, os.Stderr)
	log := logger.NewSlog(&zl)

	ctx := context.Background()
	rw, closeStore, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Error("open store failed", "err", err)
		return 1
	}
	defer func() { _ = closeStore() }()

	opts, err := app.EngineOptions(cfg, rw, nil, log)
	if err != nil {
		log.Error("invalid engine config", "err", err)
		return 1
	}
	start := time.Now()
	eng, err := engine.New(ctx, opts)
	if err != nil {
		log.Error("engine init failed", "err", err)
		return 1
	}
	fmt.Printf("loaded in %s\n", time.Since(start).Round(time.Microsecond))

	code := 0
	for _, arg := range flag.Args() {
		lat, lng, err := parsePair(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
			code = 1
			continue
		}
		t0 := time.Now()
		zone, ok, err := eng.Resolve(ctx, lat, lng)
		took := time.Since(t0).Round(time.Microsecond)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
			code = 1
		case !ok:
			fmt.Printf("%s\t-\t%s\n", arg, took)
		default:
			fmt.Printf("%s\t%s\t%s\n", arg, zone, took)
		}
	}
	return code
}

func parsePair(s string) (lat, lng float64, err error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want lat,lng")
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(a), 64); err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(b), 64); err != nil {
		return 0, 0, fmt.Errorf("lng: %w", err)
	}
	return lat, lng, nil
}

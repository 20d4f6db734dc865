package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
)

type Options struct {
	Eviction Eviction
	// LoadTimeout bounds every storage read; zero means no deadline.
	LoadTimeout time.Duration
	Logger      *slog.Logger
}

// Store serves tile subsets of the dataset. Loaded polygons are immutable;
// the partial cache is guarded by mu, so loads of the same tile and
// eviction decisions never race.
type Store struct {
	src      storage.Source
	base     string
	meta     Meta
	eviction Eviction
	timeout  time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	cache tileCache
}

// Open reads the meta file of base. A missing meta file means an unsplit
// dataset stored as the single <base>-all tile.
func Open(ctx context.Context, src storage.Source, base string, opts Options) (*Store, error) {
	ev := opts.Eviction.withDefaults()
	cache, err := newCache(ev)
	if err != nil {
		return nil, err
	}
	s := &Store{
		src:      src,
		base:     base,
		eviction: ev,
		timeout:  opts.LoadTimeout,
		log:      opts.Logger,
		cache:    cache,
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	raw, err := s.read(ctx, MetaName(base))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.log.Info("no tile meta; using unsplit dataset", "file", FileName(base, ""))
		s.meta = BuildMeta(0)
	case err != nil:
		return nil, fmt.Errorf("tiles meta: %w", err)
	default:
		m, err := UnmarshalMeta(base, raw)
		if err != nil {
			return nil, err
		}
		s.meta = m
	}
	s.log.Debug("tile store ready",
		"base", base,
		"depth", s.meta.Depth,
		"files", len(s.meta.Files),
		"policy", ev.Policy.String())
	return s, nil
}

func (s *Store) Meta() Meta { return s.meta }

func (s *Store) Policy() Policy { return s.eviction.Policy }

func (s *Store) read(ctx context.Context, name string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.src.Read(ctx, name)
}

func (s *Store) load(ctx context.Context, name string) (*dataset.Dataset, error) {
	raw, err := s.read(ctx, name)
	if err == nil {
		var ds *dataset.Dataset
		ds, err = dataset.Unmarshal(raw)
		if err == nil {
			observability.IncTileLoad(nil)
			return ds, nil
		}
	}
	observability.IncTileLoad(err)
	return nil, fmt.Errorf("tile %q: %w", name, err)
}

// Subset returns the tile covering p, loading it on a cache miss.
func (s *Store) Subset(ctx context.Context, p geo.Point) (*dataset.Dataset, error) {
	name := FileName(s.base, CodeFor(p, s.meta.Depth))

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.cache.get(name); ok {
		observability.IncTileCacheHit()
		return ds, nil
	}
	ds, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.add(name, ds)
	observability.SetTileCacheSize(s.cache.len())
	s.log.Debug("tile loaded", "file", name, "zones", ds.Len())
	return ds, nil
}

// Polygon returns polygon i of zone from the tile covering p.
func (s *Store) Polygon(ctx context.Context, p geo.Point, zone string, i int) (geo.Polygon, bool, error) {
	ds, err := s.Subset(ctx, p)
	if err != nil {
		return geo.Polygon{}, false, err
	}
	poly, ok := ds.Polygon(zone, i)
	return poly, ok, nil
}

// EndRun applies the eviction policy after a completed lookup.
func (s *Store) EndRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.eviction.Policy {
	case PolicyPerRun:
		s.clearLocked()
	case PolicyPerRunLottery:
		if s.eviction.Rand() < s.eviction.ClearProbability {
			s.clearLocked()
		}
	}
}

func (s *Store) clearLocked() {
	if s.cache.len() == 0 {
		return
	}
	s.cache.purge()
	observability.IncTileCacheClear(s.eviction.Policy.String())
	observability.SetTileCacheSize(0)
}

// CachedTiles reports how many tiles the partial cache holds.
func (s *Store) CachedTiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.len()
}

// LoadAll reads every tile and merges them into the complete dataset,
// bypassing the partial cache. The zone order recorded in the meta file
// is restored; zones it does not list follow in tile code order.
func (s *Store) LoadAll(ctx context.Context) (*dataset.Dataset, error) {
	merged := dataset.New()
	for _, code := range s.meta.Codes() {
		ds, err := s.load(ctx, FileName(s.base, code))
		if err != nil {
			return nil, err
		}
		merged.Merge(ds)
	}
	if len(s.meta.Zones) == 0 {
		return merged, nil
	}

	all := dataset.New()
	for _, zone := range s.meta.Zones {
		if merged.Has(zone) {
			all.Add(zone, merged.Polygons(zone)...)
		}
	}
	for _, zone := range merged.Names() {
		if !all.Has(zone) {
			all.Add(zone, merged.Polygons(zone)...)
		}
	}
	return all, nil
}

// Package engine resolves coordinates to timezone names: the shortcut index
// narrows a point to candidate zones, and only when it cannot decide alone
// is the point's tile loaded for exact point-in-polygon tests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/overlap"
	"github.com/mohammed-shakir/tzwhere/internal/shortcut"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/tiles"
)

// ErrDatasetUnavailable wraps every failure to read or decode the meta,
// index or tile blobs.
var ErrDatasetUnavailable = errors.New("timezone dataset unavailable")

const DefaultBase = "tz"

type Options struct {
	Source storage.Source
	// Sink, when set, receives an index rebuilt because the persisted one
	// was missing or unreadable.
	Sink  storage.Sink
	Base  string
	Tiles tiles.Options

	// DetectOverlaps keeps testing candidates after the first match so that
	// points claimed by several zones are logged and reported. The first
	// match is still returned.
	DetectOverlaps bool
	Reporter       overlap.Reporter
	// OverlapResolution is the H3 resolution of reported cells. Zero picks
	// overlap.DefaultResolution, negative leaves cells out.
	OverlapResolution int

	Logger *slog.Logger
}

// Engine is safe for concurrent use. The index and loaded polygons are
// immutable; the tile cache locks internally.
type Engine struct {
	store  *tiles.Store
	index  *shortcut.Index
	detect bool
	rep    overlap.Reporter
	res    int
	log    *slog.Logger
}

func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("engine: storage source is required")
	}
	if opts.Base == "" {
		opts.Base = DefaultBase
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Tiles.Logger == nil {
		opts.Tiles.Logger = log
	}
	res := opts.OverlapResolution
	if res == 0 {
		res = overlap.DefaultResolution
	}

	store, err := tiles.Open(ctx, opts.Source, opts.Base, opts.Tiles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}

	e := &Engine{
		store:  store,
		detect: opts.DetectOverlaps,
		rep:    opts.Reporter,
		res:    res,
		log:    log,
	}

	idx, err := e.loadIndex(ctx, opts)
	if err != nil {
		log.Warn("shortcut index unusable; rebuilding from full dataset", "err", err)
		idx, err = e.rebuildIndex(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
		}
	}
	e.index = idx

	st := idx.Stats()
	log.Info("timezone engine ready",
		"base", opts.Base,
		"zones", st.Zones,
		"depth", store.Meta().Depth,
		"policy", store.Policy().String(),
		"detect_overlaps", e.detect)
	return e, nil
}

func (e *Engine) loadIndex(ctx context.Context, opts Options) (*shortcut.Index, error) {
	if opts.Tiles.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Tiles.LoadTimeout)
		defer cancel()
	}
	raw, err := opts.Source.Read(ctx, tiles.ShortcutName(opts.Base))
	if err != nil {
		return nil, err
	}
	return shortcut.Unmarshal(raw)
}

// rebuildIndex needs the complete dataset: an index built from a tile
// subset would miss zones.
func (e *Engine) rebuildIndex(ctx context.Context, opts Options) (*shortcut.Index, error) {
	ds, err := e.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := shortcut.Build(ds)
	if opts.Sink == nil {
		return idx, nil
	}

	b, err := shortcut.Marshal(idx)
	if err == nil {
		err = opts.Sink.Write(ctx, tiles.ShortcutName(opts.Base), b)
	}
	if err != nil {
		// the in-memory index is complete; only the next start pays again
		e.log.Warn("persist rebuilt shortcut index failed", "err", err)
	}
	return idx, nil
}

// Resolve returns the timezone containing (lat, lng). A point no zone
// claims, including any out-of-range or NaN coordinate, yields ok=false
// with a nil error. The eviction policy runs before Resolve returns on
// every path.
func (e *Engine) Resolve(ctx context.Context, lat, lng float64) (zone string, ok bool, err error) {
	start := time.Now()
	outcome := observability.OutcomeNone
	defer func() {
		e.store.EndRun()
		observability.ObserveLookup(outcome, time.Since(start).Seconds())
	}()

	p := geo.Point{Lat: lat, Lng: lng}
	if !inRange(p) {
		return "", false, nil
	}

	cands := e.index.Candidates(p)
	switch len(cands) {
	case 0:
		return "", false, nil
	case 1:
		outcome = observability.OutcomeShortcut
		return cands[0].Zone, true, nil
	}

	zone, ok, err = e.exact(ctx, p, cands)
	switch {
	case err != nil:
		outcome = observability.OutcomeError
	case ok:
		outcome = observability.OutcomeExact
	}
	return zone, ok, err
}

// exact tests candidates in index zone order, then polygon index order.
// The point's tile is loaded at most once per call.
func (e *Engine) exact(ctx context.Context, p geo.Point, cands []shortcut.Candidate) (string, bool, error) {
	var (
		subset  *dataset.Dataset
		matches []string
		tests   int
	)
	defer func() { observability.AddExactTests(tests) }()

	for _, c := range cands {
		for _, i := range c.Polygons {
			if err := ctx.Err(); err != nil {
				return "", false, err
			}
			if subset == nil {
				var err error
				if subset, err = e.store.Subset(ctx, p); err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return "", false, ctxErr
					}
					return "", false, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
				}
			}
			poly, ok := subset.Polygon(c.Zone, i)
			if !ok {
				continue
			}
			tests++
			if !poly.Contains(p) {
				continue
			}
			if !e.detect {
				return c.Zone, true, nil
			}
			matches = append(matches, c.Zone)
			break
		}
	}

	if len(matches) == 0 {
		return "", false, nil
	}
	if len(matches) > 1 {
		e.reportOverlap(p, matches)
	}
	return matches[0], true, nil
}

func (e *Engine) reportOverlap(p geo.Point, zones []string) {
	observability.IncOverlap()
	e.log.Warn("timezone polygons overlap",
		"lat", p.Lat,
		"lng", p.Lng,
		"winner", zones[0],
		"zones", zones)
	if e.rep != nil {
		e.rep.Report(overlap.NewEvent(p.Lat, p.Lng, zones, e.res))
	}
}

func inRange(p geo.Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type Stats struct {
	Zones       int    `json:"zones"`
	LatBins     int    `json:"lat_bins"`
	LngBins     int    `json:"lng_bins"`
	Assignments int    `json:"assignments"`
	Depth       int    `json:"depth"`
	Tiles       int    `json:"tiles"`
	CachedTiles int    `json:"cached_tiles"`
	Policy      string `json:"policy"`
}

func (e *Engine) Stats() Stats {
	st := e.index.Stats()
	meta := e.store.Meta()
	return Stats{
		Zones:       st.Zones,
		LatBins:     st.LatBins,
		LngBins:     st.LngBins,
		Assignments: st.Assignments,
		Depth:       meta.Depth,
		Tiles:       len(meta.Files),
		CachedTiles: e.store.CachedTiles(),
		Policy:      e.store.Policy().String(),
	}
}

// Package prep turns a timezone boundary GeoJSON FeatureCollection into the
// tile, meta and shortcut blobs the engine reads.
package prep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/shortcut"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/tiles"
)

type Options struct {
	Base  string
	Depth int
	// Exclude drops zones whose region, the part of the name before the
	// first '/', is listed.
	Exclude []string
	Logger  *slog.Logger
}

type Summary struct {
	Zones    int
	Polygons int
	Depth    int
	Tiles    int
	Skipped  int
}

type feature struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Geometry   *geometry                  `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Parse reads a FeatureCollection whose features carry a tzid (or TZID)
// property. Polygon and MultiPolygon geometries become one polygon per
// part with coordinates flipped from [lng, lat]; other geometry types are
// skipped and counted.
func Parse(r io.Reader, exclude []string) (*dataset.Dataset, int, error) {
	var root struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, 0, fmt.Errorf("parse geojson: %w", err)
	}
	if root.Type != "FeatureCollection" {
		return nil, 0, fmt.Errorf("type is %q (want \"FeatureCollection\")", root.Type)
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if e = strings.TrimSpace(e); e != "" {
			excluded[e] = struct{}{}
		}
	}

	ds := dataset.New()
	skipped := 0
	for i, raw := range root.Features {
		var f feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, 0, fmt.Errorf("feature %d: %w", i, err)
		}
		if f.Type != "Feature" {
			return nil, 0, fmt.Errorf("feature %d: type is %q (want \"Feature\")", i, f.Type)
		}
		zone, err := zoneName(f.Properties)
		if err != nil {
			return nil, 0, fmt.Errorf("feature %d: %w", i, err)
		}
		region, _, _ := strings.Cut(zone, "/")
		if _, ok := excluded[region]; ok {
			skipped++
			continue
		}
		if f.Geometry == nil {
			skipped++
			continue
		}

		polys, err := polygons(f.Geometry)
		if err != nil {
			return nil, 0, fmt.Errorf("feature %d (%s): %w", i, zone, err)
		}
		if polys == nil {
			skipped++
			continue
		}
		ds.Add(zone, polys...)
	}
	return ds, skipped, nil
}

func zoneName(props map[string]json.RawMessage) (string, error) {
	for _, key := range []string{"tzid", "TZID"} {
		raw, ok := props[key]
		if !ok {
			continue
		}
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return "", fmt.Errorf("parse %q: %w", key, err)
		}
		if name = strings.TrimSpace(name); name == "" {
			return "", fmt.Errorf("empty %q", key)
		}
		return name, nil
	}
	return "", errors.New(`missing "tzid" property`)
}

// polygons returns nil for geometry types that carry no area.
func polygons(g *geometry) ([]geo.Polygon, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		p, err := polygon(rings)
		if err != nil {
			return nil, err
		}
		return []geo.Polygon{p}, nil
	case "MultiPolygon":
		var parts [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		out := make([]geo.Polygon, 0, len(parts))
		for j, rings := range parts {
			p, err := polygon(rings)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", j, err)
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func polygon(rings [][][]float64) (geo.Polygon, error) {
	out := make([][]geo.Point, 0, len(rings))
	for i, ring := range rings {
		pts := make([]geo.Point, 0, len(ring))
		for j, pos := range ring {
			if len(pos) < 2 {
				return geo.Polygon{}, fmt.Errorf("ring %d position %d: want [lng, lat]", i, j)
			}
			pts = append(pts, geo.Point{Lat: pos[1], Lng: pos[0]})
		}
		out = append(out, pts)
	}
	return geo.NewPolygon(out), nil
}

// Run parses the collection read from r and writes the tiles, their meta
// file and the shortcut index to sink.
func Run(ctx context.Context, r io.Reader, sink storage.Sink, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Base == "" {
		opts.Base = "tz"
	}

	ds, skipped, err := Parse(r, opts.Exclude)
	if err != nil {
		return Summary{}, err
	}
	if ds.Len() == 0 {
		return Summary{}, errors.New("no timezone polygons in input")
	}
	log.Info("parsed boundaries", "zones", ds.Len(), "polygons", ds.NumPolygons(), "skipped", skipped)

	meta, err := tiles.Write(ctx, sink, opts.Base, ds, opts.Depth)
	if err != nil {
		return Summary{}, err
	}

	idx := shortcut.Build(ds)
	b, err := shortcut.Marshal(idx)
	if err != nil {
		return Summary{}, err
	}
	if err := sink.Write(ctx, tiles.ShortcutName(opts.Base), b); err != nil {
		return Summary{}, fmt.Errorf("shortcuts: %w", err)
	}
	st := idx.Stats()
	log.Info("wrote dataset",
		"base", opts.Base,
		"depth", meta.Depth,
		"tiles", len(meta.Files),
		"lat_bins", st.LatBins,
		"lng_bins", st.LngBins)

	return Summary{
		Zones:    ds.Len(),
		Polygons: ds.NumPolygons(),
		Depth:    meta.Depth,
		Tiles:    len(meta.Files),
		Skipped:  skipped,
	}, nil
}

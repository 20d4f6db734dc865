package tiles

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
)

// Partition splits ds into the tiles of a depth-level quadtree. Every
// (zone, polygon) pair lands in each tile its bounding box overlaps, so a
// polygon straddling a split appears in several tiles. Zone polygon lists
// keep their full length in every tile that holds the zone, with empty
// polygons in the slots that do not overlap it, which keeps polygon
// indices valid against the shortcut index.
func Partition(ds *dataset.Dataset, depth int) (map[string]*dataset.Dataset, Meta) {
	meta := BuildMeta(depth)
	meta.Zones = ds.Names()
	out := make(map[string]*dataset.Dataset, len(meta.Files))
	for code := range meta.Files {
		out[code] = dataset.New()
	}

	codes := meta.Codes()
	for _, zone := range ds.Names() {
		polys := ds.Polygons(zone)
		for _, code := range codes {
			bounds := meta.Files[code]
			var slots []geo.Polygon
			for i, p := range polys {
				bb, ok := p.BBox()
				if !ok || !bounds.overlaps(bb) {
					continue
				}
				if slots == nil {
					slots = make([]geo.Polygon, len(polys))
				}
				slots[i] = p
			}
			if slots != nil {
				out[code].Add(zone, slots...)
			}
		}
	}
	return out, meta
}

// Write partitions ds and persists every tile and the meta file to sink.
func Write(ctx context.Context, sink storage.Sink, base string, ds *dataset.Dataset, depth int) (Meta, error) {
	parts, meta := Partition(ds, depth)
	for _, code := range meta.Codes() {
		b, err := dataset.Marshal(parts[code])
		if err != nil {
			return Meta{}, fmt.Errorf("tile %q: %w", FileName(base, code), err)
		}
		if err := sink.Write(ctx, FileName(base, code), b); err != nil {
			return Meta{}, fmt.Errorf("tile %q: %w", FileName(base, code), err)
		}
	}
	mb, err := MarshalMeta(base, meta)
	if err != nil {
		return Meta{}, err
	}
	if err := sink.Write(ctx, MetaName(base), mb); err != nil {
		return Meta{}, fmt.Errorf("tiles meta: %w", err)
	}
	return meta, nil
}

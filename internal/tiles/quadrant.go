// Package tiles partitions the timezone dataset into a fixed-depth quadtree
// of files and serves lazily loaded subsets of it.
package tiles

import (
	"fmt"
	"sort"

	"github.com/mohammed-shakir/tzwhere/internal/blob"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
)

// DefaultDepth yields 16 tile files.
const DefaultDepth = 2

// Quadrant digits, applied recursively to the remaining box.
const (
	NorthWest = '0'
	NorthEast = '1'
	SouthEast = '2'
	SouthWest = '3'
)

// Bounds is a box in the shifted space: N/S in [0,180] (lat+90), E/W in
// [0,360] (lng+180).
type Bounds struct {
	N, S, E, W float64
}

var world = Bounds{N: 180, S: 0, E: 360, W: 0}

func (b Bounds) quadrant(digit byte) Bounds {
	midLat := b.S + (b.N-b.S)/2
	midLng := b.W + (b.E-b.W)/2
	switch digit {
	case NorthWest:
		return Bounds{N: b.N, S: midLat, E: midLng, W: b.W}
	case NorthEast:
		return Bounds{N: b.N, S: midLat, E: b.E, W: midLng}
	case SouthEast:
		return Bounds{N: midLat, S: b.S, E: b.E, W: midLng}
	default:
		return Bounds{N: midLat, S: b.S, E: midLng, W: b.W}
	}
}

// overlapSlack widens tile bounds by one comparator grid step so polygons
// matching a point on a split line under geo.Cmp land in the point's tile.
const overlapSlack = 1 / geo.Scale

// overlaps tests a true-coordinate bbox against shifted bounds, closed on
// all sides.
func (b Bounds) overlaps(bb geo.BBox) bool {
	return bb.North+90 >= b.S-overlapSlack &&
		bb.South+90 <= b.N+overlapSlack &&
		bb.East+180 >= b.W-overlapSlack &&
		bb.West+180 <= b.E+overlapSlack
}

// Meta describes a tile layout. Files is fully determined by Depth; Zones
// records the zone order of the partitioned dataset so merging tiles back
// together restores it.
type Meta struct {
	Depth int
	Files map[string]Bounds // keyed by quadrant code, "" for depth 0
	Zones []string
}

// BuildMeta quarters the shifted world depth times.
func BuildMeta(depth int) Meta {
	if depth < 0 {
		depth = 0
	}
	files := map[string]Bounds{"": world}
	for range depth {
		next := make(map[string]Bounds, len(files)*4)
		for code, b := range files {
			for _, d := range []byte{NorthWest, NorthEast, SouthEast, SouthWest} {
				next[code+string(d)] = b.quadrant(d)
			}
		}
		files = next
	}
	return Meta{Depth: depth, Files: files}
}

// Codes returns the tile codes in lexical order.
func (m Meta) Codes() []string {
	out := make([]string, 0, len(m.Files))
	for c := range m.Files {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CodeFor walks the bisection for p without consulting a meta table.
// Points on a split line go north and east; out-of-range points are clamped.
func CodeFor(p geo.Point, depth int) string {
	lat := clamp(p.Lat+90, 0, 180)
	lng := clamp(p.Lng+180, 0, 360)
	b := world
	code := make([]byte, 0, depth)
	for range depth {
		midLat := b.S + (b.N-b.S)/2
		midLng := b.W + (b.E-b.W)/2
		var d byte
		switch north, east := lat >= midLat, lng >= midLng; {
		case north && !east:
			d = NorthWest
		case north && east:
			d = NorthEast
		case !north && east:
			d = SouthEast
		default:
			d = SouthWest
		}
		code = append(code, d)
		b = b.quadrant(d)
	}
	return string(code)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// FileName is <base>-<code>, or <base>-all for the single depth-0 file.
func FileName(base, code string) string {
	if code == "" {
		return base + "-all"
	}
	return base + "-" + code
}

func MetaName(base string) string     { return base + "-meta" }
func ShortcutName(base string) string { return base + "-shortcuts" }

type wireMeta struct {
	Depth int
	Files map[string]Bounds // keyed by file name
	Zones []string
}

// MarshalMeta persists {depth, bounds per file name}.
func MarshalMeta(base string, m Meta) ([]byte, error) {
	w := wireMeta{Depth: m.Depth, Files: make(map[string]Bounds, len(m.Files)), Zones: m.Zones}
	for code, b := range m.Files {
		w.Files[FileName(base, code)] = b
	}
	out, err := blob.Marshal(blob.KindMeta, w)
	if err != nil {
		return nil, fmt.Errorf("tiles meta marshal: %w", err)
	}
	return out, nil
}

// UnmarshalMeta decodes a meta file and checks it against the layout
// implied by its depth.
func UnmarshalMeta(base string, data []byte) (Meta, error) {
	var w wireMeta
	if err := blob.Unmarshal(blob.KindMeta, data, &w); err != nil {
		return Meta{}, fmt.Errorf("tiles meta unmarshal: %w", err)
	}
	m := BuildMeta(w.Depth)
	if len(w.Files) != len(m.Files) {
		return Meta{}, fmt.Errorf("tiles meta: depth %d expects %d files, found %d", w.Depth, len(m.Files), len(w.Files))
	}
	for code := range m.Files {
		if _, ok := w.Files[FileName(base, code)]; !ok {
			return Meta{}, fmt.Errorf("tiles meta: missing file %q", FileName(base, code))
		}
	}
	m.Zones = w.Zones
	return m, nil
}

// Package shortcut implements the coarse 1-degree index that narrows a
// point down to the timezones whose polygon bounding boxes cover its cell.
package shortcut

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mohammed-shakir/tzwhere/internal/blob"
	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
)

// Degrees is the bin width on both axes.
const Degrees = 1

// bins maps degree bin -> zone -> polygon indices (ascending).
type bins map[int]map[string][]int

// Index is immutable once built. It requires the complete dataset: an index
// built from a partial tile subset misses zones and must never be used.
type Index struct {
	zones []string
	rank  map[string]int
	byLat bins
	byLng bins
}

// Candidate is a timezone whose polygons may contain the query point,
// with the polygon indices that cover the point's cell on both axes.
type Candidate struct {
	Zone     string
	Polygons []int
}

// Bin returns the 1-degree bin of a coordinate.
func Bin(v float64) int {
	return int(math.Floor(v/Degrees)) * Degrees
}

// Build registers every (zone, polygon) pair in every bin its bounding box
// covers, on each axis independently.
func Build(ds *dataset.Dataset) *Index {
	idx := &Index{
		zones: ds.Names(),
		byLat: bins{},
		byLng: bins{},
	}
	idx.rank = rankOf(idx.zones)

	for _, zone := range idx.zones {
		for i, p := range ds.Polygons(zone) {
			bb, ok := p.BBox()
			if !ok {
				continue
			}
			for d := Bin(bb.West); d <= Bin(bb.East); d += Degrees {
				idx.byLng.add(d, zone, i)
			}
			for d := Bin(bb.South); d <= Bin(bb.North); d += Degrees {
				idx.byLat.add(d, zone, i)
			}
		}
	}
	return idx
}

func rankOf(zones []string) map[string]int {
	r := make(map[string]int, len(zones))
	for i, z := range zones {
		r[z] = i
	}
	return r
}

func (b bins) add(d int, zone string, poly int) {
	m := b[d]
	if m == nil {
		m = map[string][]int{}
		b[d] = m
	}
	m[zone] = append(m[zone], poly)
}

// Candidates returns the zones present in both the latitude and the
// longitude bin of p, in dataset zone order. Each candidate's polygon list
// is the intersection of its two per-axis lists. Points outside the valid
// coordinate range find no bin and yield nothing.
func (x *Index) Candidates(p geo.Point) []Candidate {
	latZones := x.byLat[Bin(p.Lat)]
	lngZones := x.byLng[Bin(p.Lng)]
	if len(latZones) == 0 || len(lngZones) == 0 {
		return nil
	}

	out := make([]Candidate, 0, min(len(latZones), len(lngZones)))
	for zone, latPolys := range latZones {
		lngPolys, ok := lngZones[zone]
		if !ok {
			continue
		}
		out = append(out, Candidate{Zone: zone, Polygons: intersect(latPolys, lngPolys)})
	}
	x.sortByRank(out)
	return out
}

func (x *Index) sortByRank(cs []Candidate) {
	// insertion sort: candidate sets are small
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && x.rank[cs[j].Zone] < x.rank[cs[j-1].Zone]; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

// intersect keeps the elements of a that also appear in b, in a's order.
func intersect(a, b []int) []int {
	in := make(map[int]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	out := make([]int, 0, min(len(a), len(b)))
	for _, v := range a {
		if _, ok := in[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Zones returns the zone order the index was built with.
func (x *Index) Zones() []string { return append([]string(nil), x.zones...) }

type Stats struct {
	Zones       int
	LatBins     int
	LngBins     int
	Assignments int
}

func (x *Index) Stats() Stats {
	s := Stats{Zones: len(x.zones), LatBins: len(x.byLat), LngBins: len(x.byLng)}
	for _, b := range []bins{x.byLat, x.byLng} {
		for _, zones := range b {
			for _, polys := range zones {
				s.Assignments += len(polys)
			}
		}
	}
	return s
}

type wireIndex struct {
	Zones     []string
	Latitude  map[string]map[string][]int
	Longitude map[string]map[string][]int
}

// Marshal persists the index with degree bins as strings.
func Marshal(x *Index) ([]byte, error) {
	w := wireIndex{
		Zones:     x.zones,
		Latitude:  x.byLat.toWire(),
		Longitude: x.byLng.toWire(),
	}
	b, err := blob.Marshal(blob.KindShortcut, w)
	if err != nil {
		return nil, fmt.Errorf("shortcut marshal: %w", err)
	}
	return b, nil
}

func Unmarshal(data []byte) (*Index, error) {
	var w wireIndex
	if err := blob.Unmarshal(blob.KindShortcut, data, &w); err != nil {
		return nil, fmt.Errorf("shortcut unmarshal: %w", err)
	}
	lat, err := binsFromWire(w.Latitude)
	if err != nil {
		return nil, fmt.Errorf("shortcut latitude: %w", err)
	}
	lng, err := binsFromWire(w.Longitude)
	if err != nil {
		return nil, fmt.Errorf("shortcut longitude: %w", err)
	}
	return &Index{zones: w.Zones, rank: rankOf(w.Zones), byLat: lat, byLng: lng}, nil
}

func (b bins) toWire() map[string]map[string][]int {
	out := make(map[string]map[string][]int, len(b))
	for d, zones := range b {
		out[strconv.Itoa(d)] = zones
	}
	return out
}

func binsFromWire(w map[string]map[string][]int) (bins, error) {
	out := make(bins, len(w))
	for k, zones := range w {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("degree bin %q: %w", k, err)
		}
		out[d] = zones
	}
	return out, nil
}

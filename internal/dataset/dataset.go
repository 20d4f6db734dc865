// Package dataset holds the timezone name -> polygons mapping and its
// persisted encoding.
package dataset

import (
	"github.com/mohammed-shakir/tzwhere/internal/geo"
)

// Dataset maps timezone names to their polygon parts. Zone insertion order
// is preserved and is the iteration order everywhere a deterministic order
// matters; the position of a polygon in its zone's list is its index.
type Dataset struct {
	names []string
	polys map[string][]geo.Polygon
}

func New() *Dataset {
	return &Dataset{polys: make(map[string][]geo.Polygon)}
}

// Add appends polygons to zone, registering the zone on first use.
func (d *Dataset) Add(zone string, polys ...geo.Polygon) {
	if _, ok := d.polys[zone]; !ok {
		d.names = append(d.names, zone)
		d.polys[zone] = nil
	}
	d.polys[zone] = append(d.polys[zone], polys...)
}

// Names returns zone names in insertion order.
func (d *Dataset) Names() []string {
	return append([]string(nil), d.names...)
}

func (d *Dataset) Len() int { return len(d.names) }

func (d *Dataset) Has(zone string) bool {
	_, ok := d.polys[zone]
	return ok
}

// Polygons returns the polygon list of zone. Callers must not modify it.
func (d *Dataset) Polygons(zone string) []geo.Polygon {
	return d.polys[zone]
}

// Polygon returns polygon i of zone. ok is false when the slot does not
// exist or holds an empty polygon.
func (d *Dataset) Polygon(zone string, i int) (geo.Polygon, bool) {
	ps := d.polys[zone]
	if i < 0 || i >= len(ps) || ps[i].Empty() {
		return geo.Polygon{}, false
	}
	return ps[i], true
}

// NumPolygons counts non-empty polygons across all zones.
func (d *Dataset) NumPolygons() int {
	n := 0
	for _, ps := range d.polys {
		for _, p := range ps {
			if !p.Empty() {
				n++
			}
		}
	}
	return n
}

// Merge folds other into d slot by slot: for every zone, polygon i of
// other fills slot i of d when d's slot is empty. Used to union tile
// subsets, which keep full-length polygon lists with empty slots.
func (d *Dataset) Merge(other *Dataset) {
	for _, zone := range other.names {
		src := other.polys[zone]
		dst, ok := d.polys[zone]
		if !ok {
			d.names = append(d.names, zone)
		}
		if len(dst) < len(src) {
			grown := make([]geo.Polygon, len(src))
			copy(grown, dst)
			dst = grown
		}
		for i, p := range src {
			if dst[i].Empty() && !p.Empty() {
				dst[i] = p
			}
		}
		d.polys[zone] = dst
	}
}

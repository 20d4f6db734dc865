package engine

import (
	"context"
	"testing"

	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/shortcut"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/storage/fsstore"
	"github.com/mohammed-shakir/tzwhere/internal/tiles"
)

func ring(s, w, n, e float64) []geo.Point {
	return []geo.Point{{Lat: s, Lng: w}, {Lat: s, Lng: e}, {Lat: n, Lng: e}, {Lat: n, Lng: w}, {Lat: s, Lng: w}}
}

func box(s, w, n, e float64) geo.Polygon {
	return geo.NewPolygon([][]geo.Point{ring(s, w, n, e)})
}

// world is a small synthetic dataset shaped after the places the lookup
// properties are stated for. Boxes that share an edge both contain it.
func world() *dataset.Dataset {
	ds := dataset.New()

	ds.Add("America/New_York", box(37, -80, 42, -74))
	ds.Add("America/Chicago", box(37, -90, 42, -80))

	// Saskatchewan with Swift Current cut out of it.
	ds.Add("America/Regina", geo.NewPolygon([][]geo.Point{
		ring(49, -110, 60, -101.5),
		ring(49.5, -109.5, 51, -107),
	}))
	ds.Add("America/Swift_Current", box(49.5, -109.5, 51, -107))

	// band around 48N
	ds.Add("America/Anchorage", box(45, -170, 65, -130))
	ds.Add("America/Vancouver", box(45, -130, 48.5, -114))
	ds.Add("America/Winnipeg", box(45, -114, 48.5, -89))
	ds.Add("America/Toronto", box(42, -89, 57, -52))
	ds.Add("Europe/Paris", box(42, -5, 51, 8))
	ds.Add("Europe/Berlin", box(47, 8, 55, 15))
	ds.Add("Asia/Yekaterinburg", box(40, 15, 60, 46))
	ds.Add("Asia/Almaty", box(40, 46, 55, 87))
	ds.Add("Asia/Shanghai", box(20, 87, 53, 135), box(18, 108, 21, 111))

	// Australia and neighbours
	ds.Add("Australia/Perth", box(-36, 112, -13, 129))
	ds.Add("Australia/Darwin", box(-26, 129, -10, 138))
	ds.Add("Australia/Adelaide", box(-38, 129, -26, 141))
	ds.Add("Australia/Brisbane", box(-29, 138, -10, 154))
	ds.Add("Australia/Sydney", box(-38, 141, -29, 154))
	ds.Add("Asia/Jakarta", box(-11, 95, 6, 141))
	ds.Add("Pacific/Noumea", box(-23, 163, -19, 168))
	return ds
}

// prepare writes ds as tiles plus its shortcut index, the way tzprep does.
func prepare(t *testing.T, rw storage.ReadWriter, ds *dataset.Dataset, depth int) {
	t.Helper()
	ctx := context.Background()
	if _, err := tiles.Write(ctx, rw, DefaultBase, ds, depth); err != nil {
		t.Fatalf("tiles.Write: %v", err)
	}
	b, err := shortcut.Marshal(shortcut.Build(ds))
	if err != nil {
		t.Fatalf("shortcut.Marshal: %v", err)
	}
	if err := rw.Write(ctx, tiles.ShortcutName(DefaultBase), b); err != nil {
		t.Fatalf("write shortcuts: %v", err)
	}
}

func newDir(t *testing.T) *fsstore.Dir {
	t.Helper()
	dir, err := fsstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsstore.New: %v", err)
	}
	return dir
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func mustResolve(t *testing.T, e *Engine, lat, lng float64) (string, bool) {
	t.Helper()
	zone, ok, err := e.Resolve(context.Background(), lat, lng)
	if err != nil {
		t.Fatalf("Resolve(%v,%v): %v", lat, lng, err)
	}
	return zone, ok
}

func geoPoint(lat, lng float64) geo.Point { return geo.Point{Lat: lat, Lng: lng} }

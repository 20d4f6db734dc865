package tiles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mohammed-shakir/tzwhere/internal/dataset"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/storage/fsstore"
)

func box(s, w, n, e float64) geo.Polygon {
	return geo.NewPolygon([][]geo.Point{{{Lat: s, Lng: w}, {Lat: s, Lng: e}, {Lat: n, Lng: e}, {Lat: n, Lng: w}}})
}

// countingSource counts reads per blob name.
type countingSource struct {
	src storage.Source

	mu    sync.Mutex
	reads map[string]int
}

func (c *countingSource) Read(ctx context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	if c.reads == nil {
		c.reads = map[string]int{}
	}
	c.reads[name]++
	c.mu.Unlock()
	return c.src.Read(ctx, name)
}

func (c *countingSource) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[name]
}

func testDataset() *dataset.Dataset {
	ds := dataset.New()
	// straddles the equator and the prime meridian
	ds.Add("Etc/Center", box(-5, -5, 5, 5))
	// second polygon only in the far north-west
	ds.Add("America/Test", box(60, -120, 70, -100), box(-40, -70, -30, -60))
	ds.Add("Asia/Test", box(30, 100, 40, 110))
	return ds
}

func writeTiles(t *testing.T, depth int) (*fsstore.Dir, *dataset.Dataset) {
	t.Helper()
	dir, err := fsstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsstore: %v", err)
	}
	ds := testDataset()
	if _, err := Write(context.Background(), dir, "tz", ds, depth); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dir, ds
}

func TestBuildMeta_FileCounts(t *testing.T) {
	for depth, want := range []int{1, 4, 16, 64} {
		m := BuildMeta(depth)
		if len(m.Files) != want {
			t.Fatalf("depth %d: files=%d want %d", depth, len(m.Files), want)
		}
	}
	m := BuildMeta(1)
	if got := m.Files["0"]; got != (Bounds{N: 180, S: 90, E: 180, W: 0}) {
		t.Fatalf("NW quadrant=%+v", got)
	}
	if got := m.Files["2"]; got != (Bounds{N: 90, S: 0, E: 360, W: 180}) {
		t.Fatalf("SE quadrant=%+v", got)
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		p     geo.Point
		depth int
		want  string
	}{
		{geo.Point{Lat: 38.9, Lng: -77.0}, 1, "0"},
		{geo.Point{Lat: 38.9, Lng: -77.0}, 2, "02"},
		{geo.Point{Lat: -33.9, Lng: 151.2}, 2, "21"},
		{geo.Point{Lat: 0, Lng: 0}, 1, "1"}, // split lines go north and east
		{geo.Point{Lat: 0, Lng: 0}, 0, ""},
		{geo.Point{Lat: 95, Lng: -200}, 1, "0"},
		{geo.Point{Lat: -90, Lng: 180}, 1, "2"},
	}
	for _, c := range cases {
		if got := CodeFor(c.p, c.depth); got != c.want {
			t.Fatalf("CodeFor(%v,%d)=%q want %q", c.p, c.depth, got, c.want)
		}
	}
}

func TestCodeFor_MatchesMetaBounds(t *testing.T) {
	m := BuildMeta(3)
	for lat := -89.5; lat < 90; lat += 7.3 {
		for lng := -179.5; lng < 180; lng += 11.1 {
			p := geo.Point{Lat: lat, Lng: lng}
			b, ok := m.Files[CodeFor(p, 3)]
			if !ok {
				t.Fatalf("no tile for %v", p)
			}
			if lat+90 < b.S || lat+90 > b.N || lng+180 < b.W || lng+180 > b.E {
				t.Fatalf("%v outside its tile %+v", p, b)
			}
		}
	}
}

func TestFileNames(t *testing.T) {
	if got := FileName("tz", ""); got != "tz-all" {
		t.Fatalf("FileName depth 0=%q", got)
	}
	if got := FileName("tz", "13"); got != "tz-13" {
		t.Fatalf("FileName=%q", got)
	}
	if MetaName("tz") != "tz-meta" || ShortcutName("tz") != "tz-shortcuts" {
		t.Fatalf("unexpected aux names %q %q", MetaName("tz"), ShortcutName("tz"))
	}
}

func TestPartition_PreservesPolygonIndices(t *testing.T) {
	parts, meta := Partition(testDataset(), 1)
	if len(parts) != len(meta.Files) {
		t.Fatalf("parts=%d files=%d", len(parts), len(meta.Files))
	}

	// Etc/Center touches all four quadrants.
	for code, ds := range parts {
		if _, ok := ds.Polygon("Etc/Center", 0); !ok {
			t.Fatalf("tile %s missing Etc/Center", code)
		}
	}

	nw := parts["0"]
	if _, ok := nw.Polygon("America/Test", 0); !ok {
		t.Fatalf("NW tile missing America/Test[0]")
	}
	if _, ok := nw.Polygon("America/Test", 1); ok {
		t.Fatalf("NW tile should hold an empty slot for America/Test[1]")
	}
	if n := len(nw.Polygons("America/Test")); n != 2 {
		t.Fatalf("slot list length=%d want 2", n)
	}

	sw := parts["3"]
	if _, ok := sw.Polygon("America/Test", 1); !ok {
		t.Fatalf("SW tile missing America/Test[1]")
	}
	if sw.Has("Asia/Test") {
		t.Fatalf("SW tile should not hold Asia/Test")
	}
}

func TestMeta_RoundTripAndValidation(t *testing.T) {
	b, err := MarshalMeta("tz", BuildMeta(2))
	if err != nil {
		t.Fatalf("MarshalMeta: %v", err)
	}
	m, err := UnmarshalMeta("tz", b)
	if err != nil {
		t.Fatalf("UnmarshalMeta: %v", err)
	}
	if m.Depth != 2 || len(m.Files) != 16 {
		t.Fatalf("meta=%d/%d", m.Depth, len(m.Files))
	}
	if _, err := UnmarshalMeta("other", b); err == nil {
		t.Fatalf("expected error for mismatched base name")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"off":             PolicyOff,
		"FULL":            PolicyFull,
		"per-run":         PolicyPerRun,
		"per-run-lottery": PolicyPerRunLottery,
		"lru":             PolicyLRU,
	} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q)=%v,%v want %v", in, got, err, want)
		}
		if in == "FULL" {
			continue
		}
		if got.String() != in {
			t.Fatalf("String()=%q want %q", got.String(), in)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func openStore(t *testing.T, src storage.Source, ev Eviction) *Store {
	t.Helper()
	s, err := Open(context.Background(), src, "tz", Options{Eviction: ev})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStore_Policies(t *testing.T) {
	dir, _ := writeTiles(t, 2)
	ctx := context.Background()
	p := geo.Point{Lat: 65, Lng: -110}
	name := FileName("tz", CodeFor(p, 2))

	cases := []struct {
		ev         Eviction
		wantReads  int
		wantCached int
	}{
		{Eviction{Policy: PolicyOff}, 3, 0},
		{Eviction{Policy: PolicyFull}, 1, 1},
		{Eviction{Policy: PolicyPerRun}, 3, 0},
		{Eviction{Policy: PolicyPerRunLottery, Rand: func() float64 { return 0.9 }}, 1, 1},
		{Eviction{Policy: PolicyPerRunLottery, Rand: func() float64 { return 0.1 }}, 3, 0},
		{Eviction{Policy: PolicyLRU, MaxTiles: 1}, 1, 1},
	}
	for _, c := range cases {
		src := &countingSource{src: dir}
		s := openStore(t, src, c.ev)
		for range 3 {
			poly, ok, err := s.Polygon(ctx, p, "America/Test", 0)
			if err != nil || !ok {
				t.Fatalf("%s: Polygon ok=%v err=%v", c.ev.Policy, ok, err)
			}
			if !poly.Contains(p) {
				t.Fatalf("%s: polygon does not contain %v", c.ev.Policy, p)
			}
			s.EndRun()
		}
		if got := src.count(name); got != c.wantReads {
			t.Fatalf("%s: reads=%d want %d", c.ev.Policy, got, c.wantReads)
		}
		if got := s.CachedTiles(); got != c.wantCached {
			t.Fatalf("%s: cached=%d want %d", c.ev.Policy, got, c.wantCached)
		}
	}
}

func TestStore_LRUBound(t *testing.T) {
	dir, _ := writeTiles(t, 1)
	s := openStore(t, dir, Eviction{Policy: PolicyLRU, MaxTiles: 2})
	ctx := context.Background()
	for _, p := range []geo.Point{{Lat: 10, Lng: -10}, {Lat: 10, Lng: 10}, {Lat: -10, Lng: 10}} {
		if _, err := s.Subset(ctx, p); err != nil {
			t.Fatalf("Subset(%v): %v", p, err)
		}
	}
	if got := s.CachedTiles(); got != 2 {
		t.Fatalf("cached=%d want 2", got)
	}
}

func TestStore_LoadAllMergesTiles(t *testing.T) {
	dir, ds := writeTiles(t, 2)
	s := openStore(t, dir, Eviction{Policy: PolicyFull})
	all, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if all.Len() != ds.Len() || all.NumPolygons() != ds.NumPolygons() {
		t.Fatalf("merged %d zones/%d polys, want %d/%d", all.Len(), all.NumPolygons(), ds.Len(), ds.NumPolygons())
	}
	if s.CachedTiles() != 0 {
		t.Fatalf("LoadAll must bypass the partial cache")
	}
	want, got := ds.Names(), all.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("zone order=%v want %v", got, want)
		}
	}
}

func TestOpen_MissingMetaFallsBackToDepthZero(t *testing.T) {
	dir, err := fsstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsstore: %v", err)
	}
	b, err := dataset.Marshal(testDataset())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := dir.Write(context.Background(), FileName("tz", ""), b); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s := openStore(t, dir, Eviction{Policy: PolicyFull})
	if s.Meta().Depth != 0 {
		t.Fatalf("depth=%d want 0", s.Meta().Depth)
	}
	if _, ok, err := s.Polygon(context.Background(), geo.Point{Lat: 35, Lng: 105}, "Asia/Test", 0); err != nil || !ok {
		t.Fatalf("Polygon ok=%v err=%v", ok, err)
	}
}

func TestStore_MissingTileIsAnError(t *testing.T) {
	dir, err := fsstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsstore: %v", err)
	}
	s := openStore(t, dir, Eviction{Policy: PolicyFull})
	_, err = s.Subset(context.Background(), geo.Point{Lat: 1, Lng: 1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

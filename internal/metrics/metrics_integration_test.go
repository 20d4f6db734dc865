package metrics

import (
	"strings"
	"testing"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})

	observability.ObserveLookup(observability.OutcomeShortcut, 0.00002)
	observability.ObserveLookup(observability.OutcomeExact, 0.0004)
	observability.AddExactTests(3)
	observability.IncTileLoad(nil)
	observability.IncTileCacheClear("per-run")
	observability.ObserveStoreOp("redis_get", nil, 0.002)

	body := scrape(t, p)
	for _, s := range []string{
		`tz_lookup_duration_seconds_bucket`,
		`tz_store_op_duration_seconds_count`,
		`tz_exact_tests_total `,
	} {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "tz_lookups_total", `outcome="shortcut"`)
	assertHasMetricLine(t, body, "tz_lookups_total", `outcome="exact"`)
	assertHasMetricLine(t, body, "tz_tile_loads_total", `result="ok"`)
	assertHasMetricLine(t, body, "tz_tile_cache_clears_total", `policy="per-run"`)
	assertHasMetricLine(t, body, "tz_store_op_total", `op="redis_get"`, `result="ok"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}

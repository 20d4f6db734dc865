package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes.
const (
	OutcomeNone     = "none"
	OutcomeShortcut = "shortcut"
	OutcomeExact    = "exact"
	OutcomeError    = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_lookups_total",
			Help: "Timezone lookups by outcome.",
		},
		[]string{"outcome"},
	)

	lookupDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tz_lookup_duration_seconds",
			Help:    "Duration of timezone lookups in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		},
	)

	exactTestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tz_exact_tests_total",
			Help: "Point-in-polygon tests run after the shortcut filter.",
		},
	)

	tileLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_tile_loads_total",
			Help: "Tile file loads from storage by result.",
		},
		[]string{"result"},
	)

	tileCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tz_tile_cache_hits_total",
			Help: "Tile lookups served from the partial cache.",
		},
	)

	tileCacheClearsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_tile_cache_clears_total",
			Help: "Partial cache clears by eviction policy.",
		},
		[]string{"policy"},
	)

	tileCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tz_tile_cache_tiles",
			Help: "Tiles currently held in the partial cache.",
		},
	)

	overlapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tz_overlaps_total",
			Help: "Lookups where more than one timezone polygon contained the point.",
		},
	)

	storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tz_store_op_total",
			Help: "Blob storage operations by result.",
		},
		[]string{"op", "result"},
	)

	storeOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tz_store_op_duration_seconds",
			Help:    "Duration of blob storage operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"op"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		lookupsTotal, lookupDurationSeconds, exactTestsTotal,
		tileLoadsTotal, tileCacheHitsTotal, tileCacheClearsTotal, tileCacheSize,
		overlapsTotal, storeOpsTotal, storeOpDurationSeconds,
	}
}

func init() {
	prometheus.MustRegister(buildInfo)
	prometheus.MustRegister(collectors()...)
}

// Register adds the application collectors to a private registry, such as
// the one served by the metrics listener. Build info is left out: the
// registry provider exposes its own.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func ObserveLookup(outcome string, durationSeconds float64) {
	lookupsTotal.WithLabelValues(outcome).Inc()
	lookupDurationSeconds.Observe(durationSeconds)
}

func AddExactTests(n int) {
	if n > 0 {
		exactTestsTotal.Add(float64(n))
	}
}

func IncTileLoad(err error) {
	tileLoadsTotal.WithLabelValues(result(err)).Inc()
}

func IncTileCacheHit() { tileCacheHitsTotal.Inc() }

func IncTileCacheClear(policy string) {
	tileCacheClearsTotal.WithLabelValues(policy).Inc()
}

func SetTileCacheSize(n int) { tileCacheSize.Set(float64(n)) }

func IncOverlap() { overlapsTotal.Inc() }

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	storeOpsTotal.WithLabelValues(op, result(err)).Inc()
	storeOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

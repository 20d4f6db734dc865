// Package metrics builds the private Prometheus registry served on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/engine"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Enabled bool
	Path    string
	Build   BuildInfo
}

type Provider struct {
	reg  *prometheus.Registry
	path string
}

// Init creates the registry with runtime collectors, build info and the
// lookup, tile cache and storage collectors.
func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(build)
	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)

	if err := observability.Register(reg); err != nil {
		panic(err)
	}

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	return &Provider{reg: reg, path: path}
}

func (p *Provider) Path() string { return p.path }

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// RegisterEngine exposes the dataset shape and partial cache size of a
// running engine, sampled at scrape time.
func (p *Provider) RegisterEngine(stats func() engine.Stats) {
	gauge := func(name, help string, f func(engine.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(f(stats())) },
		)
	}
	p.Register(
		gauge("tz_dataset_zones", "Timezones in the loaded shortcut index.",
			func(s engine.Stats) int { return s.Zones }),
		gauge("tz_dataset_tiles", "Tile files in the dataset layout.",
			func(s engine.Stats) int { return s.Tiles }),
		gauge("tz_index_assignments", "Zone polygon entries across all shortcut bins.",
			func(s engine.Stats) int { return s.Assignments }),
	)
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters, registered on a private registry
// so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	JobsSubmitted prometheus.Counter
	JobsSucceeded prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsPartial   prometheus.Counter
	JobsTimedOut  prometheus.Counter

	PipelineRuns     prometheus.Counter
	PipelineFailures prometheus.Counter
	TileCacheHits    prometheus.Counter
	TileCacheMisses  prometheus.Counter
	TilesServed      prometheus.Counter
	TileServerMisses prometheus.Counter
}

// New creates a Metrics instance with all counters registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "detection_desktop",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Metrics{
		registry:         reg,
		JobsSubmitted:    counter("jobs_submitted_total", "Processing requests enqueued."),
		JobsSucceeded:    counter("jobs_succeeded_total", "Jobs that reached a SUCCESS terminal status."),
		JobsFailed:       counter("jobs_failed_total", "Jobs that reached a FAILED terminal status."),
		JobsPartial:      counter("jobs_partial_total", "Jobs that reached a PARTIAL terminal status."),
		JobsTimedOut:     counter("jobs_timed_out_total", "Jobs whose status polling exhausted its retry budget."),
		PipelineRuns:     counter("tile_pipeline_runs_total", "Tile pipeline executions that invoked the external toolchain."),
		PipelineFailures: counter("tile_pipeline_failures_total", "Tile pipeline executions that failed."),
		TileCacheHits:    counter("tile_cache_hits_total", "Materialize calls satisfied from the tile cache."),
		TileCacheMisses:  counter("tile_cache_misses_total", "Materialize calls that had to generate tiles."),
		TilesServed:      counter("tiles_served_total", "Tiles served by the local tile server."),
		TileServerMisses: counter("tile_server_misses_total", "Tile requests for files that do not exist."),
	}
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

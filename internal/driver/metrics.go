package driver

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the driver's internal counters through a
// prometheus.Registry, following brawer-wikidata-qrank's webserver
// pattern of serving promhttp.Handler() alongside a batch job. Every
// gauge/counter here is updated from the same run-loop state Run already
// tracks; prometheus only changes how it's exposed.
type Metrics struct {
	reg *prometheus.Registry

	TilesProcessed prometheus.Counter
	TilesEmpty     prometheus.Counter
	TilesFailed    prometheus.Counter
	QueueDepth     prometheus.Gauge
	ReaderOpens    prometheus.Counter
}

// NewMetrics builds and registers a fresh Metrics set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		TilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demosaic_tiles_processed_total",
			Help: "Tiles fully written to the output raster.",
		}),
		TilesEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demosaic_tiles_empty_total",
			Help: "Tiles written with no contributing input (all no-data).",
		}),
		TilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demosaic_tiles_failed_total",
			Help: "Tiles that aborted with an IoError.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "demosaic_tile_queue_depth",
			Help: "Tiles queued but not yet picked up by a worker.",
		}),
		ReaderOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "demosaic_reader_opens_total",
			Help: "Input readers opened by the reader cache (cache misses). Nothing increments it, so it stays 0.",
		}),
	}
	reg.MustRegister(m.TilesProcessed, m.TilesEmpty, m.TilesFailed, m.QueueDepth, m.ReaderOpens)
	return m
}

// Serve starts an HTTP server exposing the registry at /metrics, honoring
// ctx for shutdown; it runs until ctx is cancelled or ListenAndServe
// returns an error other than http.ErrServerClosed.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("demosaic: see /metrics\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

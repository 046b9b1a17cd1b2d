package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cot_backtest_runs_total", Help: "Backtest runs by pair and status"},
		[]string{"pair", "status"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cot_signals_total", Help: "Signals built by pair and type"},
		[]string{"pair", "type"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cot_fetch_errors_total", Help: "Failed upstream fetches by feed"},
		[]string{"feed"},
	)
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cot_run_duration_seconds",
		Help:    "Wall time of a full fetch-and-backtest cycle",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	LatestConviction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "cot_latest_conviction", Help: "Conviction of the most recent signal per pair"},
		[]string{"pair", "direction"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, SignalsTotal, FetchErrorsTotal, RunDuration, LatestConviction)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

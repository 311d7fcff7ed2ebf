package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgassist_build_info",
			Help: "Build information of pgassist",
		},
		[]string{"version", "commit", "date"},
	)

	LoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgassist_load_total",
			Help: "Number of table loads by result",
		},
		[]string{"result"},
	)

	RowsLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pgassist_rows_loaded_total",
			Help: "Number of rows read into frames",
		},
	)

	StageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgassist_stage_total",
			Help: "Number of frame staging writes by result",
		},
		[]string{"result"},
	)

	RowsStagedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pgassist_rows_staged_total",
			Help: "Number of rows written to staged tables",
		},
	)

	TrainTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgassist_train_total",
			Help: "Number of assistant training runs by result",
		},
		[]string{"result"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgassist_operation_duration_seconds",
			Help:    "Duration of pgassist operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Result maps an operation error to its result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

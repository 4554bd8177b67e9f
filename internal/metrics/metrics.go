// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fingerprint result labels.
const (
	ResultOK    = "ok"
	ResultNull  = "null"
	ResultEmpty = "empty"
)

// File status labels.
const (
	FileAnalyzed = "analyzed"
	FileSkipped  = "skipped"
	FileFailed   = "failed"
)

var (
	// RecordsTotal counts dissected records by the layer the request came from.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfinger_records_total",
			Help: "Total number of capture records processed",
		},
		[]string{"source"},
	)

	// FingerprintsTotal counts produced fingerprints by outcome.
	FingerprintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfinger_fingerprints_total",
			Help: "Total number of fingerprints produced (ok, null, empty)",
		},
		[]string{"result"},
	)

	// AnomaliesTotal counts non-fatal anomalies by kind.
	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfinger_anomalies_total",
			Help: "Total number of anomalies noted while fingerprinting",
		},
		[]string{"kind"},
	)

	// FilesTotal counts input files by status.
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfinger_files_total",
			Help: "Total number of capture files seen",
		},
		[]string{"status"},
	)

	// BatchDurationSeconds measures the fingerprinting time of one capture.
	BatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfinger_batch_duration_seconds",
			Help:    "Time spent fingerprinting one capture file",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
	)

	// ReporterErrorsTotal counts reporter failures by reporter name.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfinger_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)

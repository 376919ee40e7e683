package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_records_read_total",
		Help: "Total number of raw records consumed by the normalizer.",
	})

	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowlens_records_rejected_total",
		Help: "Total number of raw records dropped during normalization, labelled by reason.",
	}, []string{"reason"})

	EventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_events_accepted_total",
		Help: "Total number of records that became canonical events.",
	})

	SessionsReconstructed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_sessions_reconstructed_total",
		Help: "Total number of sessions rebuilt from events.",
	})

	IdentityConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowlens_identity_conflicts_total",
		Help: "Total number of session ids claimed by more than one user id.",
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowlens_anomalies_detected_total",
		Help: "Total number of anomaly records, labelled by kind and severity.",
	}, []string{"kind", "severity"})

	DetectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowlens_detector_failures_total",
		Help: "Total number of detector runs that panicked and were skipped.",
	}, []string{"detector"})

	AnalysesRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowlens_analyses_total",
		Help: "Total number of analysis passes, labelled by outcome.",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowlens_analysis_duration_seconds",
		Help:    "End-to-end analysis pass latency in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})
)

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

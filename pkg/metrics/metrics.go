package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Replication progress
	LastCommittedSeqno = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galera_last_committed_seqno",
			Help: "Process-wide last_committed_trx global seqno",
		},
	)

	// Certification outcomes
	CertificationConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galera_certification_conflicts_total",
			Help: "Total certification conflicts by kind",
		},
		[]string{"kind"}, // "soft" (table-level) or "hard" (row-level)
	)

	// Ordered delivery queues
	ToQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galera_to_queue_depth",
			Help: "Current head position of the total-order delivery queue",
		},
	)

	CommitQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galera_commit_queue_depth",
			Help: "Current head position of the commit-order delivery queue",
		},
	)

	// Parallel applier job queue
	JobQueueActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galera_job_queue_active_workers",
			Help: "Number of applier workers currently running a job",
		},
	)

	// Certification index maintenance
	PurgeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galera_purge_total",
			Help: "Total observed advances of the certification-index purge bound",
		},
	)

	ActiveIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galera_cert_index_active_size",
			Help: "Number of write-sets currently retained in the active-seqno list",
		},
	)

	// Local-commit latency
	LocalCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "galera_local_commit_duration_seconds",
			Help:    "Time from BeginCommit to commit_queue grab in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlowControlWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galera_flow_control_waits_total",
			Help: "Total number of local commits that had to wait for flow control",
		},
	)
)

func init() {
	prometheus.MustRegister(LastCommittedSeqno)
	prometheus.MustRegister(CertificationConflictsTotal)
	prometheus.MustRegister(ToQueueDepth)
	prometheus.MustRegister(CommitQueueDepth)
	prometheus.MustRegister(JobQueueActiveWorkers)
	prometheus.MustRegister(PurgeTotal)
	prometheus.MustRegister(ActiveIndexSize)
	prometheus.MustRegister(LocalCommitDuration)
	prometheus.MustRegister(FlowControlWaitsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

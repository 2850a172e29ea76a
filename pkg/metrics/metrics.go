package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ServicingOperationsTotal counts completed install/update/rollback/
	// commit invocations by the servicing type selected (§4.2.1) and their
	// terminal status.
	ServicingOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostd_servicing_operations_total",
			Help: "Total servicing operations by servicing type and status",
		},
		[]string{"servicing_type", "status"},
	)

	// ServicingOperationDuration is the end-to-end wall time of a single
	// servicing invocation, from validate through commit/finalize.
	ServicingOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostd_servicing_operation_duration_seconds",
			Help:    "Servicing operation duration in seconds by servicing type",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"servicing_type"},
	)

	// SubsystemPhaseDuration is the time a single named subsystem (§2)
	// spends in one phase of the validate→provision→configure pipeline.
	SubsystemPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostd_subsystem_phase_duration_seconds",
			Help:    "Subsystem phase duration in seconds by subsystem and phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subsystem", "phase"},
	)

	// SubsystemPhaseFailuresTotal counts phase failures; collection of
	// this metric is itself best-effort and never blocks the phase.
	SubsystemPhaseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostd_subsystem_phase_failures_total",
			Help: "Total subsystem phase failures by subsystem and phase",
		},
		[]string{"subsystem", "phase"},
	)

	// RollbacksTotal counts manual rollback invocations (§4.2.6) by kind
	// (ab, runtime) and the reason recorded for the rollback.
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostd_rollbacks_total",
			Help: "Total manual rollbacks by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	// ImageStreamBytesTotal is labelled for bytes copied out of the
	// streaming image read path, by partition role. cmd/hostd stream-image
	// does not add to it.
	ImageStreamBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostd_image_stream_bytes_total",
			Help: "Total bytes streamed from an image source by partition role",
		},
		[]string{"partition_role"},
	)

	// ServicingManagerBusyTotal is labelled for contention on the
	// servicingmgr Coordinator (§5), by permit kind. The Coordinator
	// returns ErrBusy without incrementing it.
	ServicingManagerBusyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostd_servicing_manager_busy_total",
			Help: "Total requests that found the servicing coordinator busy",
		},
		[]string{"permit"},
	)
)

func init() {
	prometheus.MustRegister(
		ServicingOperationsTotal,
		ServicingOperationDuration,
		SubsystemPhaseDuration,
		SubsystemPhaseFailuresTotal,
		RollbacksTotal,
		ImageStreamBytesTotal,
		ServicingManagerBusyTotal,
	)
}

// Handler returns the Prometheus HTTP scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and observing its
// elapsed seconds into a histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a plain histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/penshort/shortkv/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "shortkv_redirects_total{status=\"found\"} %d\n", snap.Redirects)
	writeMetric(w, "shortkv_redirects_total{status=\"not_found\"} %d\n", snap.RedirectsNotFound)
	writeMetric(w, "shortkv_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "shortkv_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)

	writeMetric(w, "shortkv_links_created_total %d\n", snap.LinksCreated)
	writeMetric(w, "shortkv_code_collisions_total %d\n", snap.CodeCollisions)
	writeMetric(w, "shortkv_code_generation_exhausted_total %d\n", snap.CodeExhausted)

	writeMetric(w, "shortkv_sweep_runs_total{status=\"success\"} %d\n", snap.SweepRunsSuccess)
	writeMetric(w, "shortkv_sweep_runs_total{status=\"failed\"} %d\n", snap.SweepRunsFailed)
	writeMetric(w, "shortkv_sweep_runs_total{status=\"skipped\"} %d\n", snap.SweepRunsSkipped)
	writeMetric(w, "shortkv_sweep_records_deleted_total %d\n", snap.SweepDeleted)
	writeMetric(w, "shortkv_sweep_records_failed_total %d\n", snap.SweepFailed)
	writeMetric(w, "shortkv_sweep_duration_seconds_count %d\n", snap.SweepDurationCount)
	writeMetric(w, "shortkv_sweep_duration_seconds_sum %.6f\n", float64(snap.SweepDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

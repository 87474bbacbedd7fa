// Package metricsx exposes optional task/cache counters over the
// VictoriaMetrics bare /metrics HTTP handler, enabled only when
// config.GlobalCfg.Metrics.Listen is set. It observes the dispatcher;
// it never drives behavior.
package metricsx

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	tasksSubmitted = metrics.NewCounter("computesrv_tasks_submitted_total")
	tasksCompleted = metrics.NewCounter("computesrv_tasks_completed_total")
	tasksCancelled = metrics.NewCounter("computesrv_tasks_cancelled_total")
	tasksFailed    = metrics.NewCounter("computesrv_tasks_failed_total")
	cacheHits      = metrics.NewCounter("computesrv_cache_hits_total")
	cacheMisses    = metrics.NewCounter("computesrv_cache_misses_total")
)

// TaskSubmitted records a new task entering the executor.
func TaskSubmitted() { tasksSubmitted.Inc() }

// TaskCompleted records a task reaching a successful terminal result.
func TaskCompleted() { tasksCompleted.Inc() }

// TaskCancelled records a task ending via cancellation acknowledgement.
func TaskCancelled() { tasksCancelled.Inc() }

// TaskFailed records a task ending via InvalidRequest{Unspecified}.
func TaskFailed() { tasksFailed.Inc() }

// CacheHit records a task submission served from the result cache.
func CacheHit() { cacheHits.Inc() }

// CacheMiss records a task submission that required execution.
func CacheMiss() { cacheMisses.Inc() }

// Serve starts an HTTP listener exposing /metrics on addr. It runs
// until the process exits or the listener errors; callers typically
// launch it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	return http.ListenAndServe(addr, mux)
}

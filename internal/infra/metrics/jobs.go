package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal) }

var jobRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Background job runs, labeled by job and status.",
	},
	[]string{"job", "status"}, // 'ok', 'error'
)

func IncJobRun(job string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	jobRunsTotal.WithLabelValues(norm(job), status).Inc()
}

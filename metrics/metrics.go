// Package metrics exposes job counters and timings of the engine to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	u "github.com/moratsam/rsparity/util"
)

type Metrics struct {
	Jobs         *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	Bytes        *prometheus.CounterVec
	GPUShare     prometheus.Gauge
	GPUFallbacks prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rspar_jobs_total",
			Help: "Finished encode and decode jobs by status.",
		}, []string{"op", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rspar_job_duration_seconds",
			Help:    "Duration of encode and decode jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rspar_multiplied_bytes_total",
			Help: "Bytes pushed through region multiplies, by processing unit.",
		}, []string{"op", "unit"}),
		GPUShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rspar_gpu_share_ratio",
			Help: "Fraction of each stripe currently given to the GPU.",
		}),
		GPUFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rspar_gpu_fallbacks_total",
			Help: "Jobs that dropped the GPU after an accelerator error.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Jobs, m.JobDuration, m.Bytes, m.GPUShare, m.GPUFallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, u.WrapErr("register collector", err)
		}
	}
	return m, nil
}

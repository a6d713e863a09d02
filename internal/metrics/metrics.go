package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Deployments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sqpplus",
		Name:      "deployments_total",
		Help:      "Deployment attempts by outcome (success, or the state that failed).",
	}, []string{"result"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sqpplus",
		Name:      "deploy_step_duration_seconds",
		Help:      "Time spent in each deployment step.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"state"})

	Removals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sqpplus",
		Name:      "removals_total",
		Help:      "Instances removed from the catalog.",
	})
)

func RegisterMetrics(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
}

package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus counters.
type PrometheusRecorder struct {
	notifications   *prom.CounterVec
	persists        *prom.CounterVec
	persistFailures *prom.CounterVec
	reconciliations *prom.CounterVec
}

// NewPrometheusRecorder constructs the counters and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "touche",
			Name:      "store_notifications_total",
			Help:      "State changes broadcast to subscribers",
		}, []string{"key"}),
		persists: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "touche",
			Name:      "store_persists_total",
			Help:      "Snapshots written to the storage medium",
		}, []string{"key"}),
		persistFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "touche",
			Name:      "store_persist_failures_total",
			Help:      "Snapshot writes that failed and were dropped",
		}, []string{"key"}),
		reconciliations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "touche",
			Name:      "store_reconciliations_total",
			Help:      "Reloads triggered by writes from other contexts",
		}, []string{"key"}),
	}
	reg.MustRegister(pr.notifications, pr.persists, pr.persistFailures, pr.reconciliations)
	return pr
}

func (p *PrometheusRecorder) IncNotification(key string) {
	p.notifications.WithLabelValues(key).Inc()
}

func (p *PrometheusRecorder) IncPersist(key string) {
	p.persists.WithLabelValues(key).Inc()
}

func (p *PrometheusRecorder) IncPersistFailure(key string) {
	p.persistFailures.WithLabelValues(key).Inc()
}

func (p *PrometheusRecorder) IncReconciliation(key string) {
	p.reconciliations.WithLabelValues(key).Inc()
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

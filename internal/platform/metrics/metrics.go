package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	RateLimitRejections    prometheus.Counter
	AuditQueueDrops        prometheus.Counter
	AuditWriteFailures     prometheus.Counter
	SecretStoreDegradation prometheus.Counter
}

// New creates and registers all Prometheus metrics against the given
// registerer. Tests pass prometheus.NewRegistry() to avoid duplicate
// registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_gateway_requests_total",
			Help: "Total number of HTTP requests handled, by status class",
		}, []string{"status"}),
		RateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_gateway_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		AuditQueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_gateway_audit_queue_drops_total",
			Help: "Total number of audit records dropped due to queue overflow",
		}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_gateway_audit_write_failures_total",
			Help: "Total number of audit records that failed to persist",
		}),
		SecretStoreDegradation: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_gateway_secret_store_degradations_total",
			Help: "Times the secret store fell back from the OS keychain to memory",
		}),
	}
}

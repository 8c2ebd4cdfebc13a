package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DecoyRequests      prometheus.Counter
	AuditWriteFailures prometheus.Counter
	ArchiveDownloads   prometheus.Counter
	AdminLogins        *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return build(promauto.With(prometheus.DefaultRegisterer))
}

// NewForTest registers metrics on a private registry so test packages do not
// collide on the default registerer.
func NewForTest() *Metrics {
	return build(promauto.With(prometheus.NewRegistry()))
}

func build(factory promauto.Factory) *Metrics {
	return &Metrics{
		DecoyRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirage_decoy_requests_total",
			Help: "Total number of requests served by the decoy console",
		}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirage_audit_write_failures_total",
			Help: "Total number of audit events dropped due to store errors",
		}),
		ArchiveDownloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirage_archive_downloads_total",
			Help: "Total number of decoy archive downloads started",
		}),
		AdminLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirage_admin_logins_total",
			Help: "Admin login attempts by outcome",
		}, []string{"outcome"}),
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the game service
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreatedTotal prometheus.Counter
	SessionsEndedTotal   *prometheus.CounterVec
	ClicksTotal          *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	CASConflictsTotal    prometheus.Counter
	StoreErrorsTotal     *prometheus.CounterVec
	VerificationsTotal   *prometheus.CounterVec
	StoreOpDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deathfun_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsEndedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deathfun_sessions_ended_total",
				Help: "Total number of sessions ended, by reason",
			},
			[]string{"reason"},
		),
		ClicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deathfun_clicks_total",
				Help: "Accepted tile clicks, by outcome",
			},
			[]string{"outcome"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deathfun_rejections_total",
				Help: "Rejected operations, by operation and kind",
			},
			[]string{"operation", "kind"},
		),
		CASConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deathfun_session_cas_conflicts_total",
			Help: "Compare-and-swap retries caused by concurrent writers",
		}),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deathfun_store_errors_total",
				Help: "Session store failures, by operation",
			},
			[]string{"operation"},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deathfun_verifications_total",
				Help: "Fairness verifications, by result",
			},
			[]string{"result"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deathfun_store_operation_duration_seconds",
				Help:    "Duration of session store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	m.registry.MustRegister(
		m.SessionsCreatedTotal,
		m.SessionsEndedTotal,
		m.ClicksTotal,
		m.RejectionsTotal,
		m.CASConflictsTotal,
		m.StoreErrorsTotal,
		m.VerificationsTotal,
		m.StoreOpDuration,
	)

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Package metrics exposes Prometheus instrumentation for the moderation bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "group_warden"

// Metrics holds every collector the bot records to. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	ExpiredGrantsTotal  *prometheus.CounterVec
	ActiveGrants        prometheus.Gauge
	GrantsIssuedTotal   prometheus.Counter
	CommandsTotal       *prometheus.CounterVec
	MessagesDeleted     *prometheus.CounterVec
	ExternalCallsFailed *prometheus.CounterVec
	UpdatesTotal        *prometheus.CounterVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of expiry sweeps run",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeps in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ExpiredGrantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_grants_total",
			Help:      "Expired grants processed by the sweeper",
		}, []string{"result"}), // result=revoked/failed
		ActiveGrants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_grants",
			Help:      "Number of grants currently held in the grant store",
		}),
		GrantsIssuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_issued_total",
			Help:      "Temporary posting grants issued by /approve",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Admin commands handled",
		}, []string{"command", "outcome"}), // outcome=ok/usage/denied/failed
		MessagesDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_messages_total",
			Help:      "Messages matched by the link guard",
		}, []string{"result"}), // result=deleted/failed
		ExternalCallsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_call_failures_total",
			Help:      "Failed platform API calls",
		}, []string{"op"}),
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound platform updates received",
		}, []string{"source"}), // source=webhook/poll
	}
}

func (m *Metrics) ObserveSweep(seconds float64, revoked, failed int) {
	if m == nil {
		return
	}
	m.SweepsTotal.Inc()
	m.SweepDuration.Observe(seconds)
	m.ExpiredGrantsTotal.WithLabelValues("revoked").Add(float64(revoked))
	m.ExpiredGrantsTotal.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) SetActiveGrants(count int) {
	if m == nil {
		return
	}
	m.ActiveGrants.Set(float64(count))
}

func (m *Metrics) GrantIssued() {
	if m == nil {
		return
	}
	m.GrantsIssuedTotal.Inc()
}

func (m *Metrics) Command(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) LinkMessage(deleted bool) {
	if m == nil {
		return
	}
	result := "deleted"
	if !deleted {
		result = "failed"
	}
	m.MessagesDeleted.WithLabelValues(result).Inc()
}

func (m *Metrics) ExternalCallFailed(op string) {
	if m == nil {
		return
	}
	m.ExternalCallsFailed.WithLabelValues(op).Inc()
}

func (m *Metrics) Update(source string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(source).Inc()
}

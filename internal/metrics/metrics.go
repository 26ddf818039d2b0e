// Package metrics exposes client-side Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshExpired = "expired"
	RefreshNetwork = "network_error"
	RefreshError   = "error"
)

// Metrics holds the client collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// API request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	RefreshesTotal  *prometheus.CounterVec
	RefreshWaiters  prometheus.Counter
	SessionsExpired prometheus.Counter
	LoginsTotal     *prometheus.CounterVec

	// Workflow metrics
	TransitionsTotal *prometheus.CounterVec
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compras_client_requests_total",
				Help: "Total number of API requests sent",
			},
			[]string{"method", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compras_client_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compras_session_refreshes_total",
				Help: "Total number of token refresh calls by outcome",
			},
			[]string{"outcome"},
		),
		RefreshWaiters: f.NewCounter(
			prometheus.CounterOpts{
				Name: "compras_session_refresh_waiters_total",
				Help: "Requests that joined a refresh already in flight",
			},
		),
		SessionsExpired: f.NewCounter(
			prometheus.CounterOpts{
				Name: "compras_session_expired_total",
				Help: "Total number of sessions terminated by refresh failure",
			},
		),
		LoginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compras_session_logins_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compras_workflow_transitions_total",
				Help: "Status transitions requested by this client",
			},
			[]string{"from", "to"},
		),
	}
}

// ObserveRequest records one completed API request. code 0 means the
// request never got a response.
func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	label := "none"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.RequestsTotal.WithLabelValues(method, label).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
	if outcome == RefreshExpired {
		m.SessionsExpired.Inc()
	}
}

func (m *Metrics) ObserveRefreshWaiter() {
	if m == nil {
		return
	}
	m.RefreshWaiters.Inc()
}

func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

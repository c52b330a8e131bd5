package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bastionwaf/bastion/internal/logging"
)

type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	denialsTotal        *prometheus.CounterVec
	exclusionBypasses   *prometheus.CounterVec
	exclusionRules      *prometheus.GaugeVec
	adminThrottledTotal prometheus.Counter
	requestDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bastion_requests_total", Help: "Total requests"},
			[]string{"route", "action", "code"},
		),
		denialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bastion_denials_total", Help: "Requests denied by a component, including shadowed denials"},
			[]string{"component", "deny_code"},
		),
		exclusionBypasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bastion_exclusion_bypass_total", Help: "Requests that skipped components through an exclusion rule"},
			[]string{"kind"},
		),
		exclusionRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "bastion_exclusion_rules", Help: "Configured exclusion rules"},
			[]string{"kind"},
		),
		adminThrottledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "bastion_admin_throttled_total", Help: "Admin API requests rejected by the rate limiter"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bastion_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.requestsTotal,
		m.denialsTotal,
		m.exclusionBypasses,
		m.exclusionRules,
		m.adminThrottledTotal,
		m.requestDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Observe(decision logging.Decision) {
	if m == nil {
		return
	}

	route := decision.RouteID
	m.requestsTotal.WithLabelValues(route, decision.Action, strconv.Itoa(decision.StatusCode)).Inc()
	m.requestDuration.WithLabelValues(route).Observe((time.Duration(decision.DurationMS) * time.Millisecond).Seconds())

	if decision.Component != "" {
		m.denialsTotal.WithLabelValues(decision.Component, strconv.Itoa(decision.DenyCode)).Inc()
	}
	if decision.ExclusionKind != "" {
		m.exclusionBypasses.WithLabelValues(decision.ExclusionKind).Inc()
	}
}

// SetExclusionRules records the current rule counts.
func (m *Metrics) SetExclusionRules(paths, queryParamSets int) {
	if m == nil {
		return
	}
	m.exclusionRules.WithLabelValues("path").Set(float64(paths))
	m.exclusionRules.WithLabelValues("queryParamSet").Set(float64(queryParamSets))
}

func (m *Metrics) AdminThrottled() {
	if m == nil {
		return
	}
	m.adminThrottledTotal.Inc()
}

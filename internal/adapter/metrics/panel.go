package metrics

import "github.com/prometheus/client_golang/prometheus"

// PanelMetrics holds Prometheus metrics for panel-specific request outcomes.
type PanelMetrics struct {
	RateLimitRejections *prometheus.CounterVec
	LoginAttempts       *prometheus.CounterVec
	LanguageChanges     *prometheus.CounterVec
}

// NewPanelMetrics creates and registers panel metrics on the given registry.
func NewPanelMetrics(reg prometheus.Registerer) *PanelMetrics {
	m := &PanelMetrics{
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected by a rate limiter, by limiter.",
		}, []string{"limiter"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of password login attempts, by result.",
		}, []string{"result"}),
		LanguageChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "i18n",
			Name:      "language_changes_total",
			Help:      "Total number of /setLanguage calls, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.RateLimitRejections, m.LoginAttempts, m.LanguageChanges)
	return m
}

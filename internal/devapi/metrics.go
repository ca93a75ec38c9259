package devapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	rejected  prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_devapi_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_devapi_refreshes_total",
			Help: "Refresh token exchanges by outcome",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "school_devapi_rejected_tokens_total",
			Help: "Requests rejected for a missing, invalid or expired access token",
		}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.rejected)
	return m
}

package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	appKeyLabel = "app_key"
)

var (
	toftSessionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "toft_session_count",
		Help: "The number of sessions.",
	}, []string{appKeyLabel})

	toftSessionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toft_session_count_total",
		Help: "The total number of sessions.",
	}, []string{appKeyLabel})
)

func instrumentIncreaseSessionGauge(appKey string) {
	toftSessionCount.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Inc()
}

func instrumentDecreaseSessionGauge(appKey string) {
	toftSessionCount.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Dec()
}

func instrumentCountSession(appKey string) {
	toftSessionCountTotal.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Inc()
}

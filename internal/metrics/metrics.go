// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Fires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderbot_fires_total",
		Help: "Reminder occurrences that reached their fire time.",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderbot_delivery_failures_total",
		Help: "Reminder deliveries that returned an error.",
	})

	LiveTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminderbot_live_timers",
		Help: "Rules currently holding a timer in the scheduler.",
	})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminderbot_parse_failures_total",
		Help: "Sentences the schedule parser rejected, by reason.",
	}, []string{"reason"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

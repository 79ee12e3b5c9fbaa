package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Counters and gauges exposed on /metrics.
var (
	ChannelsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "channels_opened_total",
		Help:      "Payment channels opened, by currency.",
	}, []string{"currency"})

	PaymentsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "payments_detected_total",
		Help:      "Deposits matched to a channel, by currency.",
	}, []string{"currency"})

	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "payments_confirmed_total",
		Help:      "Deposits that reached their confirmation threshold, by currency.",
	}, []string{"currency"})

	AccountsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "accounts_created_total",
		Help:      "Hive accounts created, by method.",
	}, []string{"method"})

	CreationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "account_creation_failures_total",
		Help:      "Account creation attempts that failed.",
	})

	PollerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hiveonboard",
		Name:      "poller_errors_total",
		Help:      "Chain API poll cycles that errored, by currency.",
	}, []string{"currency"})

	ACTBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hiveonboard",
		Name:      "act_balance",
		Help:      "Account creation tokens currently held by the creator account.",
	})

	ResourceCredits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hiveonboard",
		Name:      "resource_credits",
		Help:      "Current resource credits of the creator account.",
	})

	LiveChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hiveonboard",
		Name:      "live_channels",
		Help:      "Channels currently in a non-terminal status, by status.",
	}, []string{"status"})
)

// Handler serves the prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

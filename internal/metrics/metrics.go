package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_auto_cycles_total", Help: "AUTO cycles by result"},
		[]string{"result"},
	)
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_gate_decisions_total", Help: "Gate decisions"},
		[]string{"decision"},
	)
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_executions_total", Help: "Recorded executions by status and mode"},
		[]string{"status", "mode"},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_dispatch_total", Help: "Dispatch guard decisions by reason"},
		[]string{"reason"},
	)
	FeedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signal_feed_requests_total", Help: "Twelve Data requests by endpoint and outcome"},
		[]string{"endpoint", "outcome"},
	)
	FeedBreakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "signal_feed_breaker_open", Help: "1 when the feed circuit breaker is open"},
	)
	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "signal_feed_last_price", Help: "Last observed price"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		GateDecisionsTotal,
		ExecutionsTotal,
		DispatchTotal,
		FeedRequestsTotal,
		FeedBreakerOpen,
		LastPrice,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

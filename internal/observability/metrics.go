// Package observability declares the gateway's Prometheus metrics.
package observability

import (
	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zap_api_requests_total", Help: "API requests"},
		[]string{"route", "status"},
	)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zap_dispatch_total", Help: "Outbound message dispatch outcomes"},
		[]string{"kind", "result"},
	)
	Acks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zap_acks_total", Help: "Delivery acknowledgments received"},
		[]string{"state"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "zap_send_latency_seconds", Help: "Session client send latency"},
	)
	Restarts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "zap_session_restarts_total", Help: "Session restart attempts"},
	)
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "zap_session_state", Help: "1 for the current session state, 0 otherwise"},
		[]string{"state"},
	)
)

// Register adds every metric to reg, plus a counter of events the bus
// dropped.
func Register(reg prometheus.Registerer, b *bus.Bus) {
	reg.MustRegister(APIRequests, Dispatches, Acks, SendLatency, Restarts, SessionState)
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: "zap_bus_dropped_events_total", Help: "Events dropped because a subscriber was full"},
		func() float64 { return float64(b.Dropped()) },
	))
}

// SetSessionState flips the state gauge so only current reads 1.
func SetSessionState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}

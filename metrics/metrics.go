// Package metrics exposes the connector's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "w3b2"

// Engine holds the event-engine collectors. A nil *Engine is valid and
// records nothing, so tests and embedders can opt out.
type Engine struct {
	EventsDelivered     *prometheus.CounterVec
	EventsDropped       *prometheus.CounterVec
	Reconnects          prometheus.Counter
	PoisonedTxs         prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
	ActiveListeners     prometheus.Gauge
}

func NewEngine(reg prometheus.Registerer) *Engine {
	e := &Engine{
		EventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_delivered_total",
			Help:      "Events delivered to listener queues, by stream.",
		}, []string{"stream"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_dropped_total",
			Help:      "Events dropped by bounded queues, by reason.",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "live_reconnects_total",
			Help:      "Live log stream reconnects.",
		}),
		PoisonedTxs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "poisoned_transactions_total",
			Help:      "Transactions whose logs could not be fully decoded.",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_subscriptions",
			Help:      "Subscriptions with running worker pairs.",
		}),
		ActiveListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_listeners",
			Help:      "Open listener handles.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			e.EventsDelivered, e.EventsDropped, e.Reconnects,
			e.PoisonedTxs, e.ActiveSubscriptions, e.ActiveListeners,
		)
	}
	return e
}

func (e *Engine) Delivered(stream string) {
	if e != nil {
		e.EventsDelivered.WithLabelValues(stream).Inc()
	}
}

func (e *Engine) Dropped(reason string, n float64) {
	if e != nil && n > 0 {
		e.EventsDropped.WithLabelValues(reason).Add(n)
	}
}

func (e *Engine) Reconnect() {
	if e != nil {
		e.Reconnects.Inc()
	}
}

func (e *Engine) Poisoned() {
	if e != nil {
		e.PoisonedTxs.Inc()
	}
}

func (e *Engine) SubscriptionDelta(d float64) {
	if e != nil {
		e.ActiveSubscriptions.Add(d)
	}
}

func (e *Engine) ListenerDelta(d float64) {
	if e != nil {
		e.ActiveListeners.Add(d)
	}
}

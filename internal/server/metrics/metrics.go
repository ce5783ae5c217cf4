// Package metrics exposes the chat server's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatmesh"

// Delivery paths.
const (
	PathLocal   = "local"
	PathRelay   = "relay"
	PathOffline = "offline"
)

type Metrics struct {
	routes       *prometheus.CounterVec
	logins       *prometheus.CounterVec
	brokerErrors *prometheus.CounterVec
	frames       *prometheus.CounterVec
	online       prometheus.Gauge
	channels     prometheus.Gauge
	bridgeState  prometheus.Gauge
	connections  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New builds the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_messages_total",
			Help:      "Messages routed, by delivery path.",
		}, []string{"path"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		brokerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_errors_total",
			Help:      "Broker failures, by operation.",
		}, []string{"op"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames, by outcome.",
		}, []string{"outcome"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users attached to this instance.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_channels",
			Help:      "Broker channels this instance is subscribed to.",
		}),
		bridgeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_state",
			Help:      "Bridge state: 0 disconnected, 1 connecting, 2 subscribed.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Open client transport connections.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.routes, m.logins, m.brokerErrors, m.frames,
		m.online, m.channels, m.bridgeState, m.connections)
	return m
}

func (m *Metrics) Route(path string) {
	if m == nil {
		return
	}
	m.routes.WithLabelValues(path).Inc()
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) BrokerError(op string) {
	if m == nil {
		return
	}
	m.brokerErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Frame(outcome string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.online.Set(float64(n))
}

func (m *Metrics) SetChannels(n int) {
	if m == nil {
		return
	}
	m.channels.Set(float64(n))
}

func (m *Metrics) SetBridgeState(s int) {
	if m == nil {
		return
	}
	m.bridgeState.Set(float64(s))
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

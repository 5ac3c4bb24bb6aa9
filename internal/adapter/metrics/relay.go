package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds the connection and fan-out metrics of a relay.
type RelayMetrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesReceived    prometheus.Counter
	MessagesSent        prometheus.Counter
	SendFailures        prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "websocket",
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "websocket",
			Name:      "send_failures_total",
			Help:      "Total number of fan-out sends that failed and dropped the peer",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "websocket",
			Name:      "connections_rejected_total",
			Help:      "Total number of WebSocket connections rejected before upgrade, by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.MessagesReceived, m.MessagesSent, m.SendFailures, m.ConnectionsRejected)
	return m
}

func (m *RelayMetrics) ConnectionAdded()   { m.ActiveConnections.Inc() }
func (m *RelayMetrics) ConnectionRemoved() { m.ActiveConnections.Dec() }
func (m *RelayMetrics) MessageReceived()   { m.MessagesReceived.Inc() }
func (m *RelayMetrics) MessageSent()       { m.MessagesSent.Inc() }
func (m *RelayMetrics) SendFailed()        { m.SendFailures.Inc() }

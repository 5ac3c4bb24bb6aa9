package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	// ErrSendFailed wraps a transport error from an individual fan-out send.
	ErrSendFailed = errors.New("send to peer failed")
	// ErrPeerBusy is wrapped by Transport.Send errors that drop one delivery
	// but leave the connection usable, such as a full send queue.
	ErrPeerBusy = errors.New("peer busy")
	// ErrShuttingDown is returned by OnConnect once Shutdown has started.
	ErrShuttingDown = errors.New("relay shutting down")
)

// Stats is a point-in-time reading of the relay counters.
type Stats struct {
	ActiveConnections int
	MessagesReceived  uint64
	MessagesSent      uint64
	SendFailures      uint64
}

// Relay drives the Registry from connection lifecycle events and fans inbound
// messages out to every open connection, the sender included.
type Relay struct {
	registry *Registry
	metrics  Metrics

	received atomic.Uint64
	sent     atomic.Uint64
	failures atomic.Uint64
	closing  atomic.Bool
}

// New creates a relay over registry. m may be nil.
func New(registry *Registry, m Metrics) *Relay {
	if m == nil {
		m = noopMetrics{}
	}
	return &Relay{registry: registry, metrics: m}
}

// OnConnect registers conn and opens it for broadcasts.
func (r *Relay) OnConnect(conn *Connection) error {
	if err := r.registry.Add(conn); err != nil {
		conn.markClosed()
		return fmt.Errorf("register connection %s: %w", conn.ID(), err)
	}
	r.metrics.ConnectionAdded()

	// Checked after Add: either Shutdown's snapshot sees conn, or we see the flag.
	if r.closing.Load() {
		r.OnClose(conn)
		return fmt.Errorf("register connection %s: %w", conn.ID(), ErrShuttingDown)
	}

	if !conn.open() {
		// Closed between Add and open; OnClose already ran or is running.
		return nil
	}

	slog.Info("New client connected",
		"conn_id", conn.ID().String(),
		"remote_addr", conn.RemoteAddr(),
		"active_connections", r.registry.Size(),
	)
	return nil
}

// OnMessage relays payload to every open connection in a registry snapshot.
// A busy peer misses this delivery; a peer whose send fails otherwise is
// closed. Either way the fan-out continues with the rest.
func (r *Relay) OnMessage(sender *Connection, payload []byte) {
	r.received.Add(1)
	r.metrics.MessageReceived()
	slog.Debug("Received", "conn_id", sender.ID().String(), "bytes", len(payload))

	for _, peer := range r.registry.Snapshot() {
		if peer.State() != StateOpen {
			continue
		}

		if err := r.send(peer, payload); err != nil {
			r.failures.Add(1)
			r.metrics.SendFailed()

			if errors.Is(err, ErrPeerBusy) {
				slog.Debug("Dropped message for busy peer",
					"conn_id", peer.ID().String(),
					"sender_id", sender.ID().String(),
				)
				continue
			}

			slog.Warn("Dropping peer after failed send",
				"conn_id", peer.ID().String(),
				"sender_id", sender.ID().String(),
				"error", err,
			)
			r.OnClose(peer)
			continue
		}

		r.sent.Add(1)
		r.metrics.MessageSent()
	}
}

func (r *Relay) send(peer *Connection, payload []byte) error {
	if err := peer.transport.Send(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// OnClose removes conn and closes its transport. Only the first call for a
// connection has any effect.
func (r *Relay) OnClose(conn *Connection) {
	if !conn.markClosed() {
		return
	}
	r.remove(conn)
	conn.transport.Close()

	slog.Info("Client disconnected",
		"conn_id", conn.ID().String(),
		"active_connections", r.registry.Size(),
	)
}

// Shutdown closes every registered connection with a normal close frame
// carrying reason and makes later OnConnect calls fail with ErrShuttingDown.
// Read loops that exit afterwards find their connection closed.
func (r *Relay) Shutdown(reason string) {
	r.closing.Store(true)

	closed := 0
	for _, conn := range r.registry.Snapshot() {
		if !conn.markClosed() {
			continue
		}
		r.remove(conn)
		conn.transport.CloseWithReason(reason)
		closed++
	}
	slog.Info("Relay shutdown complete", "disconnected_clients", closed)
}

func (r *Relay) remove(conn *Connection) {
	if r.registry.Remove(conn) {
		r.metrics.ConnectionRemoved()
	}
}

// Stats returns the current counter values.
func (r *Relay) Stats() Stats {
	return Stats{
		ActiveConnections: r.registry.Size(),
		MessagesReceived:  r.received.Load(),
		MessagesSent:      r.sent.Load(),
		SendFailures:      r.failures.Load(),
	}
}

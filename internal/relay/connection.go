package relay

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the liveness state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the send side of a peer session.
// Send must not block on a slow peer; it either queues the payload or fails.
type Transport interface {
	Send(payload []byte) error
	Close()
	CloseWithReason(reason string)
}

// Connection is one live peer. Identity is a random UUID assigned at creation.
type Connection struct {
	id         uuid.UUID
	remoteAddr string
	transport  Transport
	state      atomic.Int32
}

// NewConnection wraps transport in a Connection in the Connecting state.
func NewConnection(transport Transport, remoteAddr string) *Connection {
	return &Connection{
		id:         uuid.New(),
		remoteAddr: remoteAddr,
		transport:  transport,
	}
}

func (c *Connection) ID() uuid.UUID { return c.id }

func (c *Connection) RemoteAddr() string { return c.remoteAddr }

func (c *Connection) State() State { return State(c.state.Load()) }

// open moves Connecting to Open. It fails if the connection was closed first.
func (c *Connection) open() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// markClosed moves the connection to Closed. Only the first caller gets true.
func (c *Connection) markClosed() bool {
	for {
		current := c.state.Load()
		if State(current) == StateClosed {
			return false
		}
		if c.state.CompareAndSwap(current, int32(StateClosed)) {
			return true
		}
	}
}

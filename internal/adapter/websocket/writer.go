package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsrelay/internal/relay"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

var (
	// ErrSlowConsumer is returned by Send when the peer's queue is full.
	// It wraps relay.ErrPeerBusy: the delivery is dropped, the peer kept.
	ErrSlowConsumer = fmt.Errorf("send queue full: %w", relay.ErrPeerBusy)
	// ErrWriterClosed is returned by Send after the writer has stopped.
	ErrWriterClosed = errors.New("writer closed")
)

// clientWriter owns all writes to one connection. Payloads are queued and
// written in order by a single goroutine, which also sends pings. A peer that
// stops answering them hits the read deadline in the handler's read loop.
type clientWriter struct {
	connection    *websocket.Conn
	clock         clockwork.Clock
	sendChannel   chan []byte
	doneChannel   chan struct{}
	exitedChannel chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		connection:    connection,
		clock:         clock,
		sendChannel:   make(chan []byte, messageBufferSize),
		doneChannel:   make(chan struct{}),
		exitedChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// Send queues payload without blocking.
func (cw *clientWriter) Send(payload []byte) error {
	select {
	case <-cw.doneChannel:
		return ErrWriterClosed
	case <-cw.exitedChannel:
		return ErrWriterClosed
	default:
	}

	select {
	case cw.sendChannel <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()
	defer close(cw.exitedChannel)

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.abort()
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.abort()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// abort closes the socket from the writer side so the read loop unblocks and
// runs the connection's close sequence.
func (cw *clientWriter) abort() {
	_ = cw.connection.Close()
}

// Close stops the writer and closes the connection without a close frame.
func (cw *clientWriter) Close() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// CloseWithReason sends a normal-closure close frame with reason, then closes.
func (cw *clientWriter) CloseWithReason(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must exit before the close frame is written;
		// gorilla/websocket allows one concurrent writer.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}

// recordActivity is called from the read goroutine on every inbound message.
func (cw *clientWriter) recordActivity() {
	cw.updateReadDeadline()
}

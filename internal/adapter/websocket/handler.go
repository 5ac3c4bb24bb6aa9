package websocket

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/wsrelay/internal/adapter/metrics"
	apperrors "github.com/pscheid92/wsrelay/internal/platform/errors"
	"github.com/pscheid92/wsrelay/internal/relay"
)

// maxMessageSize caps one inbound frame. Larger frames close the connection
// with 1009 (message too big).
const maxMessageSize = 64 * 1024

// Handler upgrades HTTP requests to WebSocket connections and runs each
// connection's receive loop on the request goroutine, dispatching to the relay.
type Handler struct {
	relay    *relay.Relay
	limits   *ConnectionLimits
	metrics  *metrics.RelayMetrics
	clock    clockwork.Clock
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. limits and m may be nil.
func NewHandler(r *relay.Relay, limits *ConnectionLimits, checkOrigin func(*http.Request) bool, m *metrics.RelayMetrics, clock clockwork.Clock) *Handler {
	return &Handler{
		relay:   r,
		limits:  limits,
		metrics: m,
		clock:   clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle is the echo handler for the WebSocket endpoint. It returns once the
// connection has closed.
func (h *Handler) Handle(c echo.Context) error {
	ip := c.RealIP()

	if h.limits != nil {
		ok, reason := h.limits.Acquire(ip)
		if !ok {
			if h.metrics != nil {
				h.metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
			}
			slog.Warn("WebSocket connection rejected", "remote_addr", ip, "reason", reason)
			return limitError(reason)
		}
		defer h.limits.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		slog.Warn("WebSocket upgrade failed", "remote_addr", ip, "error", err)
		return nil
	}

	h.serve(conn, ip)
	return nil
}

func (h *Handler) serve(conn *websocket.Conn, remoteAddr string) {
	conn.SetReadLimit(maxMessageSize)
	writer := newClientWriter(conn, h.clock)
	c := relay.NewConnection(writer, remoteAddr)

	if err := h.relay.OnConnect(c); err != nil {
		if errors.Is(err, relay.ErrShuttingDown) {
			slog.Info("Connection refused during shutdown", "remote_addr", remoteAddr)
		} else {
			slog.Error("Failed to register connection", "remote_addr", remoteAddr, "error", err)
		}
		writer.Close()
		return
	}
	defer h.relay.OnClose(c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Debug("WebSocket read failed", "conn_id", c.ID().String(), "error", err)
			}
			return
		}

		writer.recordActivity()
		h.relay.OnMessage(c, payload)
	}
}

func limitError(reason LimitReason) error {
	switch reason {
	case LimitReasonGlobal:
		return apperrors.UnavailableError("server at connection capacity").WithField("reason", string(reason))
	case LimitReasonPerIP:
		return apperrors.RateLimitedError("too many connections from this address").WithField("reason", string(reason))
	default:
		return apperrors.RateLimitedError("connection rate exceeded").WithField("reason", string(reason))
	}
}

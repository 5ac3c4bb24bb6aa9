package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/wsrelay/internal/adapter/metrics"
	"github.com/pscheid92/wsrelay/internal/relay"
	"github.com/stretchr/testify/require"
)

func allowAll(*http.Request) bool { return true }

// newTestConnPair returns the server and client ends of a live WebSocket connection.
func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: allowAll}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

type testRelayServer struct {
	relay   *relay.Relay
	metrics *metrics.RelayMetrics
	url     string
}

// newTestRelayServer serves a relay-backed Handler at "/" over a real listener.
func newTestRelayServer(t *testing.T) *testRelayServer {
	t.Helper()

	m := metrics.NewRelayMetrics(prometheus.NewRegistry())
	r := relay.New(relay.NewRegistry(), m)
	handler := NewHandler(r, nil, allowAll, m, clockwork.NewRealClock())

	e := echo.New()
	e.GET("/", handler.Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		r.Shutdown("test finished")
		srv.Close()
	})

	return &testRelayServer{
		relay:   r,
		metrics: m,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/",
	}
}

func (s *testRelayServer) dial(t *testing.T) *ws.Conn {
	t.Helper()
	conn, resp, err := ws.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testRelayServer) waitForConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.relay.Stats().ActiveConnections == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d active connections", n)
}

func readText(t *testing.T, conn *ws.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ws.TextMessage, msgType)
	return string(msg)
}

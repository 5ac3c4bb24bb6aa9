package loadtest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsrelay/internal/platform/config"
	"golang.org/x/sync/errgroup"
)

const (
	handshakeTimeout  = 10 * time.Second
	closeFrameTimeout = time.Second
)

// Report summarises a finished run.
type Report struct {
	Iterations       int64
	ChecksPassed     int64
	ChecksFailed     int64
	MessagesReceived int64
}

// Runner executes a load test. A Runner is single-use.
type Runner struct {
	cfg    config.LoadTestConfig
	clock  clockwork.Clock
	dialer *websocket.Dialer

	iterations   atomic.Int64
	checksPassed atomic.Int64
	checksFailed atomic.Int64
	received     atomic.Int64
}

func NewRunner(cfg config.LoadTestConfig, clock clockwork.Clock) *Runner {
	return &Runner{
		cfg:    cfg,
		clock:  clock,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Run executes cfg with the wall clock.
func Run(ctx context.Context, cfg config.LoadTestConfig) (Report, error) {
	return NewRunner(cfg, clockwork.NewRealClock()).Run(ctx)
}

// Run starts cfg.VUs virtual users, each performing cfg.Iterations sessions,
// and waits for all of them. Failed handshakes are counted, not returned;
// the error is non-nil only when ctx ends the run early.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	slog.Info("Load test starting",
		"url", r.cfg.URL,
		"vus", r.cfg.VUs,
		"iterations", r.cfg.Iterations,
		"session", r.cfg.SessionDuration,
	)

	g, ctx := errgroup.WithContext(ctx)
	for vu := 1; vu <= r.cfg.VUs; vu++ {
		g.Go(func() error {
			for iteration := 1; iteration <= r.cfg.Iterations; iteration++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.iterate(ctx, vu, iteration)
			}
			return nil
		})
	}

	err := g.Wait()
	report := r.report()
	if err != nil {
		return report, fmt.Errorf("load test interrupted: %w", err)
	}
	return report, nil
}

func (r *Runner) iterate(ctx context.Context, vu, iteration int) {
	r.iterations.Add(1)
	log := slog.With("vu", vu, "iteration", iteration)

	conn, resp, err := r.dialer.DialContext(ctx, r.cfg.URL, nil)
	r.check(resp)
	if err != nil {
		log.Warn("Connection failed", "error", err)
		return
	}
	defer conn.Close()

	log.Info("Connected")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(r.cfg.Message)); err != nil {
		log.Warn("Send failed", "error", err)
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			r.received.Add(1)
			log.Info("Received message", "message", string(msg))
		}
	}()

	timer := r.clock.NewTimer(r.cfg.SessionDuration)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeFrameTimeout))
	case <-readDone:
	case <-ctx.Done():
	}

	_ = conn.Close()
	<-readDone
	log.Info("Disconnected")
}

// check records whether the handshake answered 101 Switching Protocols.
func (r *Runner) check(resp *http.Response) {
	if resp != nil && resp.StatusCode == http.StatusSwitchingProtocols {
		r.checksPassed.Add(1)
		return
	}
	r.checksFailed.Add(1)
}

func (r *Runner) report() Report {
	return Report{
		Iterations:       r.iterations.Load(),
		ChecksPassed:     r.checksPassed.Load(),
		ChecksFailed:     r.checksFailed.Load(),
		MessagesReceived: r.received.Load(),
	}
}

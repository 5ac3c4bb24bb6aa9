package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleExpiry      = 10 * time.Minute
)

// ErrAtCapacity is reported by CheckCapacity when no global slot is free.
var ErrAtCapacity = errors.New("websocket connection capacity reached")

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits gates new connections before the upgrade: a global cap,
// a per-IP cap, and a per-IP token bucket on the connection rate.
// Connections that are admitted are never throttled.
type ConnectionLimits struct {
	clock clockwork.Clock

	current   atomic.Int64
	globalMax int64

	ipMu     sync.Mutex
	ips      map[string]int
	perIPMax int

	rateMu    sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionLimits creates the combined limiter.
// connectionsPerSecond is the sustained per-IP rate; burst the number of
// immediate connections allowed from one IP.
func NewConnectionLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		clock:     clock,
		globalMax: globalMax,
		ips:       make(map[string]int),
		perIPMax:  perIPMax,
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// Acquire takes a slot for ip. On failure it returns the limit that was hit
// and holds nothing.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	// Rate first: it is the cheapest check and applies before capacity.
	if !l.allow(ip) {
		return false, LimitReasonRate
	}

	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}

	if !l.acquireIP(ip) {
		l.current.Add(-1)
		return false, LimitReasonPerIP
	}

	return true, ""
}

// Release returns the slot taken by a successful Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.ipMu.Lock()
	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
	l.ipMu.Unlock()

	l.current.Add(-1)
}

// Current returns the number of held global slots.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// CountForIP returns the number of held slots for ip.
func (l *ConnectionLimits) CountForIP(ip string) int {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	return l.ips[ip]
}

// CheckCapacity is a readiness check that fails while the global cap is reached.
func (l *ConnectionLimits) CheckCapacity(_ context.Context) error {
	if l.current.Load() >= l.globalMax {
		return ErrAtCapacity
	}
	return nil
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.globalMax {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) acquireIP(ip string) bool {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	if l.ips[ip] >= l.perIPMax {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ConnectionLimits) allow(ip string) bool {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanup(now)
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}

	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// cleanup drops limiters unused for limiterIdleExpiry. Must be called with rateMu held.
func (l *ConnectionLimits) cleanup(now time.Time) {
	cutoff := now.Add(-limiterIdleExpiry)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

func (l *ConnectionLimits) trackedIPs() int {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	return len(l.limiters)
}

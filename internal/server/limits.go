package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimitReason describes why a connection was refused admission.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

const ipStateTTL = 10 * time.Minute

// ipState tracks one remote address: its live connection count and its
// token-bucket limiter for new connections.
type ipState struct {
	active   int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnectionLimits gates WebSocket admission: a global connection cap, a
// per-IP connection cap, and a per-IP connection rate limit. All checks run
// before the upgrade so rejected clients cost no socket.
type ConnectionLimits struct {
	current atomic.Int64
	max     int64

	mu        sync.Mutex
	ips       map[string]*ipState
	maxPerIP  int
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

func NewConnectionLimits(globalMax int64, maxPerIP int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		max:       globalMax,
		ips:       make(map[string]*ipState),
		maxPerIP:  maxPerIP,
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(ipStateTTL),
	}
}

// Acquire attempts to admit a connection from ip. On refusal it reports the
// limit that tripped; on success the caller must Release exactly once.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	l.mu.Lock()
	l.maybeCleanupLocked()
	state, ok := l.ips[ip]
	if !ok {
		state = &ipState{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.ips[ip] = state
	}
	state.lastSeen = time.Now()

	if !state.limiter.Allow() {
		l.mu.Unlock()
		return false, LimitReasonRate
	}
	if state.active >= l.maxPerIP {
		l.mu.Unlock()
		return false, LimitReasonPerIP
	}

	for {
		current := l.current.Load()
		if current >= l.max {
			l.mu.Unlock()
			return false, LimitReasonGlobal
		}
		if l.current.CompareAndSwap(current, current+1) {
			break
		}
	}
	state.active++
	l.mu.Unlock()
	return true, ""
}

// Release returns the slots taken by Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if state, ok := l.ips[ip]; ok && state.active > 0 {
		state.active--
	}
	l.mu.Unlock()
	l.current.Add(-1)
}

// Current returns the number of admitted connections.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// maybeCleanupLocked drops idle IP entries so the map does not grow without
// bound. Entries with live connections are kept regardless of age.
func (l *ConnectionLimits) maybeCleanupLocked() {
	now := time.Now()
	if now.Before(l.cleanupAt) {
		return
	}
	l.cleanupAt = now.Add(ipStateTTL)
	cutoff := now.Add(-ipStateTTL)
	for ip, state := range l.ips {
		if state.active == 0 && state.lastSeen.Before(cutoff) {
			delete(l.ips, ip)
		}
	}
}

package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimiterIdleTTL   = 10 * time.Minute
	rateLimiterSweepEach = 5 * time.Minute
)

// LimitReason is the metric label for a rejected upgrade.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits admits WebSocket upgrades: a per-IP token bucket for new connections,
// a cap on concurrent connections per IP and a cap for the whole process.
type ConnectionLimits struct {
	global    atomic.Int64 // written under mu, read lock-free by Current
	globalMax int64

	mu        sync.Mutex
	perIP     map[string]int
	perIPMax  int
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	nextSweep time.Time
	now       func() time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int) *ConnectionLimits {
	l := &ConnectionLimits{
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		now:       time.Now,
	}
	l.nextSweep = l.now().Add(rateLimiterSweepEach)
	return l
}

// Acquire reserves a connection slot for ip. Every successful Acquire must be paired
// with one Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.allowRateLocked(ip) {
		return false, LimitReasonRate
	}

	if l.global.Load() >= l.globalMax {
		return false, LimitReasonGlobal
	}
	if l.perIP[ip] >= l.perIPMax {
		return false, LimitReasonPerIP
	}

	l.global.Add(1)
	l.perIP[ip]++

	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else {
		delete(l.perIP, ip)
	}
	l.global.Add(-1)
}

// Current returns the number of admitted connections.
func (l *ConnectionLimits) Current() int64 {
	return l.global.Load()
}

func (l *ConnectionLimits) CountFor(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// allowRateLocked must be called with mu held.
func (l *ConnectionLimits) allowRateLocked(ip string) bool {
	now := l.now()
	if now.After(l.nextSweep) {
		cutoff := now.Add(-rateLimiterIdleTTL)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.nextSweep = now.Add(rateLimiterSweepEach)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Package ratelimit guards check-out runs triggered over HTTP: one run in
// flight at a time and a cooldown per client between runs.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds run limit configuration.
type Config struct {
	Cooldown time.Duration // Minimum time between runs started by one client (0 disables)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{Cooldown: 3 * time.Second}
}

// LimitResult contains the result of a limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// Limiter admits at most one run at a time.
type Limiter struct {
	config *Config
	clock  Clock

	mu       sync.Mutex
	inFlight bool
	// Keyed by hash of client identifier
	lastRun map[string]time.Time
}

// New creates a new limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Limiter{
		config:  cfg,
		clock:   clock,
		lastRun: make(map[string]time.Time),
	}
}

// Begin admits a run for client. When allowed, the caller must call release
// once the run has finished; release is nil otherwise.
func (l *Limiter) Begin(client string) (LimitResult, func()) {
	now := l.clock.Now()
	key := l.hashKey(normalizeIdentifier(client))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight {
		return LimitResult{Allowed: false, Reason: "in_flight"}, nil
	}

	if last, ok := l.lastRun[key]; ok && l.config.Cooldown > 0 {
		if elapsed := now.Sub(last); elapsed < l.config.Cooldown {
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.Cooldown - elapsed,
				Reason:     "cooldown",
			}, nil
		}
	}

	l.inFlight = true
	l.lastRun[key] = now
	l.prune(now)

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			l.inFlight = false
			l.mu.Unlock()
		})
	}
	return LimitResult{Allowed: true}, release
}

// prune drops cooldown entries that can no longer block. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	for k, at := range l.lastRun {
		if now.Sub(at) >= l.config.Cooldown {
			delete(l.lastRun, k)
		}
	}
}

func (l *Limiter) hashKey(value string) string {
	hash := sha256.Sum256([]byte(value))
	return "run:" + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// ClientKey extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[len(parts)-1])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		log.Ctx(r.Context()).Debug().Str("remote_addr", r.RemoteAddr).Msg("RemoteAddr without port")
		return r.RemoteAddr
	}
	return ip
}

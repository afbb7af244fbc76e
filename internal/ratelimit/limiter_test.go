package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBegin_InFlight(t *testing.T) {
	limiter := New(&Config{Cooldown: 0, Clock: newMockClock()})

	result, release := limiter.Begin("192.168.1.1")
	if !result.Allowed || release == nil {
		t.Fatalf("First run should be allowed, got blocked: %s", result.Reason)
	}

	// Another client while the first run is in flight
	result, second := limiter.Begin("192.168.1.2")
	if result.Allowed || second != nil {
		t.Fatal("Second run while one is in flight should be blocked")
	}
	if result.Reason != "in_flight" {
		t.Errorf("Expected reason 'in_flight', got '%s'", result.Reason)
	}

	release()
	release() // idempotent

	result, release = limiter.Begin("192.168.1.2")
	if !result.Allowed {
		t.Errorf("Run after release should be allowed, got blocked: %s", result.Reason)
	}
	release()
}

func TestBegin_Cooldown(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{Cooldown: 10 * time.Second, Clock: clock})

	result, release := limiter.Begin("192.168.1.1")
	if !result.Allowed {
		t.Fatalf("First run should be allowed, got blocked: %s", result.Reason)
	}
	release()

	clock.Advance(4 * time.Second)
	result, _ = limiter.Begin("192.168.1.1")
	if result.Allowed {
		t.Fatal("Run within cooldown should be blocked")
	}
	if result.Reason != "cooldown" {
		t.Errorf("Expected reason 'cooldown', got '%s'", result.Reason)
	}
	if result.RetryAfter != 6*time.Second {
		t.Errorf("Expected RetryAfter 6s, got %v", result.RetryAfter)
	}

	// A different client is not affected by the cooldown
	result, release = limiter.Begin("192.168.1.9")
	if !result.Allowed {
		t.Errorf("Other client should be allowed, got blocked: %s", result.Reason)
	}
	release()

	clock.Advance(7 * time.Second)
	result, release = limiter.Begin("192.168.1.1")
	if !result.Allowed {
		t.Errorf("Run after cooldown should be allowed, got blocked: %s", result.Reason)
	}
	release()
}

func TestBegin_IdentifierNormalization(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{Cooldown: time.Minute, Clock: clock})

	_, release := limiter.Begin("Host-A")
	release()

	result, _ := limiter.Begin("  host-a ")
	if result.Allowed {
		t.Error("Normalized identifier should share the cooldown")
	}
}

func TestBegin_ConcurrentCallersOnlyOneWins(t *testing.T) {
	limiter := New(&Config{Clock: newMockClock()})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, _ := limiter.Begin(string(rune('a' + i)))
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("Expected exactly one run admitted, got %d", allowed)
	}
}

func TestClientKey(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/checkouts/count", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7")

	if got := ClientKey(req, false); got != "10.0.0.5" {
		t.Errorf("Expected RemoteAddr host, got %q", got)
	}
	if got := ClientKey(req, true); got != "198.51.100.7" {
		t.Errorf("Expected rightmost forwarded IP, got %q", got)
	}

	req.RemoteAddr = "unix"
	if got := ClientKey(req, false); got != "unix" {
		t.Errorf("Expected raw RemoteAddr, got %q", got)
	}
}

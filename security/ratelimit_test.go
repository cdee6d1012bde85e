package security

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	if rl.rate != 10 {
		t.Errorf("rate = %d, want 10", rl.rate)
	}
	if rl.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.burst)
	}
	if rl.maxEntries != DefaultRateLimitMaxEntries {
		t.Errorf("maxEntries = %d, want %d", rl.maxEntries, DefaultRateLimitMaxEntries)
	}
	if rl.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiterWithConfig(10, 5, 0, slog.Default(), clock)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("198.51.100.1") {
			t.Errorf("Allow() request %d should be allowed", i+1)
		}
	}

	if rl.Allow("198.51.100.1") {
		t.Error("Allow() should return false when burst is exhausted")
	}

	if !rl.Allow("198.51.100.2") {
		t.Error("Allow() for a different identifier should be allowed")
	}
}

func TestRateLimiter_Allow_RefillOverTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiterWithConfig(1, 1, 0, slog.Default(), clock)
	defer rl.Stop()

	if !rl.Allow("id") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("id") {
		t.Fatal("second request should be limited")
	}

	clock.Advance(time.Second)

	if !rl.Allow("id") {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 10, 3, slog.Default(), clockwork.NewFakeClock())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow(fmt.Sprintf("id-%d", i))
	}

	stats := rl.GetStats()
	if stats.CurrentEntries != 3 {
		t.Errorf("CurrentEntries = %d, want 3", stats.CurrentEntries)
	}
	if stats.TotalEvictions != 2 {
		t.Errorf("TotalEvictions = %d, want 2", stats.TotalEvictions)
	}
	if stats.MemoryPressure != 100 {
		t.Errorf("MemoryPressure = %v, want 100", stats.MemoryPressure)
	}
	if _, ok := rl.limiters["id-0"]; ok {
		t.Error("least recently used identifier id-0 should have been evicted")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiterWithConfig(10, 10, 0, slog.Default(), clock)
	defer rl.Stop()

	rl.Allow("idle")
	clock.Advance(20 * time.Minute)
	rl.Allow("active")
	clock.Advance(15 * time.Minute)

	rl.Cleanup(30 * time.Minute)

	if _, ok := rl.limiters["idle"]; ok {
		t.Error("idle limiter should have been removed")
	}
	if _, ok := rl.limiters["active"]; !ok {
		t.Error("active limiter should have been kept")
	}
	if got := rl.GetStats().TotalCleanups; got != 1 {
		t.Errorf("TotalCleanups = %d, want 1", got)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, slog.Default())
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.Allow(fmt.Sprintf("id-%d", i%5))
			}
		}(i)
	}
	wg.Wait()

	if got := rl.GetStats().CurrentEntries; got != 5 {
		t.Errorf("CurrentEntries = %d, want 5", got)
	}
}

func TestRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	rl.Stop()
	rl.Stop()
}

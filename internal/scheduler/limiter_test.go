package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
		c.slept += d
	}
	return nil
}

func (c *fakeClock) totalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

func noJitter() float64 { return 0 }

func TestLimiterSpacesSameHost(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 0, WithClock(clock), WithRand(noJitter))
	ctx := context.Background()

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "10.0.0.5"); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		stamps = append(stamps, clock.Now())
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < 500*time.Millisecond {
			t.Fatalf("acquisitions %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestLimiterOtherHostUnaffected(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 0, WithClock(clock), WithRand(noJitter))
	ctx := context.Background()

	if err := l.Acquire(ctx, "a"); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	before := clock.totalSlept()
	if err := l.Acquire(ctx, "b"); err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	if clock.totalSlept() != before {
		t.Fatalf("host b waited on host a's schedule")
	}
	if l.Wait("a") != 500*time.Millisecond {
		t.Fatalf("expected host a to still be spaced, got %s", l.Wait("a"))
	}
}

func TestLimiterAddsJitter(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(1, DefaultJitter, WithClock(clock), WithRand(func() float64 { return 0.5 }))
	if err := l.Acquire(context.Background(), "h"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got := clock.totalSlept(); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms jitter, got %s", got)
	}
}

func TestLimiterFloorsRate(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(0, 0, WithClock(clock), WithRand(noJitter))
	ctx := context.Background()
	_ = l.Acquire(ctx, "h")
	if got := l.Wait("h"); got != 10*time.Second {
		t.Fatalf("expected 10s spacing at the rate floor, got %s", got)
	}
}

func TestLimiterConcurrentCallersKeepSpacing(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(2, 0, WithClock(clock), WithRand(noJitter))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Acquire(ctx, "h")
		}()
	}
	wg.Wait()
	if got := clock.totalSlept(); got != 1500*time.Millisecond {
		t.Fatalf("expected three 500ms gaps, slept %s", got)
	}
}

func TestLimiterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLimiter(1, 0, WithClock(newFakeClock()))
	if err := l.Acquire(ctx, "h"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRealClockSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := RealClock.Sleep(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("sleep ignored the context")
	}
}

func TestAdaptiveLimits(t *testing.T) {
	small := AdaptiveLimits(0)
	if small.PerHostQPS != 2.0 || small.PerProtoQPS["ldap"] != 20.0 {
		t.Fatalf("unexpected limits for empty population: %+v", small)
	}
	if small.CacheTTL[CacheDiscovery] != 900*time.Second || small.CacheTTL[CacheSMB] != 450*time.Second {
		t.Fatalf("unexpected ttl for empty population: %+v", small.CacheTTL)
	}

	l := AdaptiveLimits(500)
	wantHost := 2.0 * math.Exp(-1)
	if math.Abs(l.PerHostQPS-wantHost) > 1e-9 {
		t.Fatalf("per host qps = %f, want %f", l.PerHostQPS, wantHost)
	}
	if math.Abs(l.PerProtoQPS["smb"]-wantHost*0.8) > 1e-9 || math.Abs(l.PerProtoQPS["mssql"]-wantHost*0.6) > 1e-9 {
		t.Fatalf("unexpected protocol rates: %+v", l.PerProtoQPS)
	}
	ttl := int64(900 + 60*math.Log2(501))
	if l.CacheTTL[CacheLDAP] != time.Duration(ttl)*time.Second {
		t.Fatalf("unexpected ldap ttl: %s", l.CacheTTL[CacheLDAP])
	}
	if l.TTLFor("unknown") != l.CacheTTL[CacheDiscovery] {
		t.Fatalf("unknown category must fall back to discovery ttl")
	}

	huge := AdaptiveLimits(100000)
	if huge.PerHostQPS != 0.2 || huge.PerProtoQPS["ldap"] != 1.0 {
		t.Fatalf("rates must be floored: %+v", huge)
	}
}

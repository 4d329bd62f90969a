// Package scheduler paces module jobs per host and per protocol and drains
// job lists while isolating failures.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter is the upper bound of the random delay added to every acquire.
const DefaultJitter = 0.4

// minQPS keeps the spacing finite when a zero or negative rate is configured.
const minQPS = 0.1

type keyState struct {
	mu   sync.Mutex
	next time.Time
}

// Limiter spaces acquisitions for the same key at least 1/qps apart and adds
// a uniform random jitter. Callers for one key are serialized; different keys
// never wait on each other.
type Limiter struct {
	mu     sync.Mutex
	qps    float64
	jitter float64
	clock  Clock
	rand   func() float64
	keys   map[string]*keyState
}

// LimiterOption customises a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) LimiterOption {
	return func(l *Limiter) { l.rand = f }
}

// NewLimiter creates a limiter with the given rate and jitter (seconds).
func NewLimiter(qps, jitter float64, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		qps:    qps,
		jitter: jitter,
		clock:  RealClock,
		rand:   rand.Float64,
		keys:   make(map[string]*keyState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetQPS changes the rate for subsequent acquisitions.
func (l *Limiter) SetQPS(qps float64) {
	l.mu.Lock()
	l.qps = qps
	l.mu.Unlock()
}

// QPS returns the configured rate.
func (l *Limiter) QPS() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.qps
}

func (l *Limiter) state(key string) (*keyState, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ks, ok := l.keys[key]
	if !ok {
		ks = &keyState{}
		l.keys[key] = ks
	}
	return ks, l.qps
}

// Acquire waits until key may proceed. It returns early with ctx.Err() when
// the context ends, in which case the key's schedule is left unchanged.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	ks, qps := l.state(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := l.clock.Now()
	var wait time.Duration
	if !ks.next.IsZero() && ks.next.After(now) {
		wait = ks.next.Sub(now)
	}
	if l.jitter > 0 {
		wait += time.Duration(l.rand() * l.jitter * float64(time.Second))
	}
	if err := l.clock.Sleep(ctx, wait); err != nil {
		return err
	}
	if qps < minQPS {
		qps = minQPS
	}
	ks.next = l.clock.Now().Add(time.Duration(float64(time.Second) / qps))
	return nil
}

// Wait reports how long an Acquire for key would currently wait, ignoring
// jitter.
func (l *Limiter) Wait(key string) time.Duration {
	ks, _ := l.state(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if d := ks.next.Sub(l.clock.Now()); d > 0 {
		return d
	}
	return 0
}

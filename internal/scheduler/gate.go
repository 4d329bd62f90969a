package scheduler

import (
	"context"
	"fmt"
)

// Gate combines the per-host limiter with optional per-protocol limiters.
// Protocol limiters are keyed by protocol name, so they cap the aggregate
// rate of that protocol across all hosts.
type Gate struct {
	host  *Limiter
	proto map[string]*Limiter
}

// NewGate builds a gate from computed limits.
func NewGate(limits Limits, jitter float64, opts ...LimiterOption) *Gate {
	g := &Gate{
		host:  NewLimiter(limits.PerHostQPS, jitter, opts...),
		proto: make(map[string]*Limiter, len(limits.PerProtoQPS)),
	}
	for proto, qps := range limits.PerProtoQPS {
		// Protocol pacing is a cap, not a politeness delay; no jitter.
		g.proto[proto] = NewLimiter(qps, 0, opts...)
	}
	return g
}

// Acquire waits on the host limiter and then on the protocol limiter, if one
// exists for proto.
func (g *Gate) Acquire(ctx context.Context, host, proto string) error {
	if err := g.host.Acquire(ctx, host); err != nil {
		return fmt.Errorf("host %s: %w", host, err)
	}
	if l, ok := g.proto[proto]; ok {
		if err := l.Acquire(ctx, proto); err != nil {
			return fmt.Errorf("proto %s: %w", proto, err)
		}
	}
	return nil
}

// Host returns the per-host limiter.
func (g *Gate) Host() *Limiter { return g.host }

// Proto returns the limiter for proto, if any.
func (g *Gate) Proto(proto string) (*Limiter, bool) {
	l, ok := g.proto[proto]
	return l, ok
}

package scheduler

import (
	"math"
	"time"
)

// Cache TTL categories.
const (
	CacheDiscovery = "discovery"
	CacheLDAP      = "ldap"
	CacheSMB       = "smb"
)

// Limits are the rates and cache lifetimes derived from the size of the
// discovered population.
type Limits struct {
	PerHostQPS  float64                  `json:"per_host_qps"`
	PerProtoQPS map[string]float64       `json:"per_proto_qps"`
	CacheTTL    map[string]time.Duration `json:"cache_ttl"`
}

// AdaptiveLimits slows down as the population grows and keeps results
// cached for longer.
func AdaptiveLimits(population int) Limits {
	if population < 0 {
		population = 0
	}
	n := float64(population)
	host := math.Max(0.2, 2.0*math.Exp(-n/500.0))
	ldap := math.Max(1.0, 20.0*math.Exp(-n/1000.0))
	ttl := int64(900 + 60*math.Log2(1+n))

	return Limits{
		PerHostQPS: host,
		PerProtoQPS: map[string]float64{
			"ldap":  ldap,
			"smb":   host * 0.8,
			"mssql": host * 0.6,
		},
		CacheTTL: map[string]time.Duration{
			CacheDiscovery: time.Duration(ttl) * time.Second,
			CacheLDAP:      time.Duration(ttl) * time.Second,
			CacheSMB:       time.Duration(ttl/2) * time.Second,
		},
	}
}

// TTLFor returns the cache lifetime for category, falling back to the
// discovery lifetime.
func (l Limits) TTLFor(category string) time.Duration {
	if d, ok := l.CacheTTL[category]; ok {
		return d
	}
	return l.CacheTTL[CacheDiscovery]
}

package main

import (
	"path/filepath"
	"testing"
	"time"

	"attackgraph/config"
	"attackgraph/internal/scheduler"
	"attackgraph/pkg/models"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &config.Config{}
	applyDefaults(cfg)
	ag := cfg.AttackGraph

	if ag.OutputDir != "out" {
		t.Fatalf("unexpected output dir: %s", ag.OutputDir)
	}
	if ag.Scheduler.Jitter == nil || *ag.Scheduler.Jitter != scheduler.DefaultJitter {
		t.Fatalf("expected default jitter, got %v", ag.Scheduler.Jitter)
	}
	if ag.Input.Redis.Key != "attackgraph:jobs" || ag.Input.Redis.BlockTimeout != 5*time.Second {
		t.Fatalf("unexpected redis defaults: %+v", ag.Input.Redis)
	}
	if ag.Cache.Redis.Addr != ag.Input.Redis.Addr {
		t.Fatalf("cache should default to the queue address, got %s", ag.Cache.Redis.Addr)
	}
	if ag.Output.Mode != "file" || ag.Output.File.Path != filepath.Join("out", "results.jsonl") {
		t.Fatalf("unexpected output defaults: %+v", ag.Output)
	}
}

func TestApplyDefaultsKeepsZeroJitter(t *testing.T) {
	zero := 0.0
	cfg := &config.Config{}
	cfg.AttackGraph.Scheduler.Jitter = &zero
	applyDefaults(cfg)
	if *cfg.AttackGraph.Scheduler.Jitter != 0 {
		t.Fatalf("explicit zero jitter was overwritten")
	}
}

func TestBuildLimitsOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.AttackGraph.Scheduler.Population = 1000
	cfg.AttackGraph.Scheduler.PerHostQPS = 3
	cfg.AttackGraph.Scheduler.PerProtoQPS = map[string]float64{"ldap": 0.5, "smb": 0}

	limits := buildLimits(cfg)
	adaptive := scheduler.AdaptiveLimits(1000)
	if limits.PerHostQPS != 3 {
		t.Fatalf("expected per host override, got %v", limits.PerHostQPS)
	}
	if limits.PerProtoQPS["ldap"] != 0.5 {
		t.Fatalf("expected ldap override, got %v", limits.PerProtoQPS["ldap"])
	}
	if limits.PerProtoQPS["smb"] != adaptive.PerProtoQPS["smb"] {
		t.Fatalf("zero override must keep the adaptive smb rate")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" smb_enum, ,ldap_enum,")
	if len(got) != 2 || got[0] != "smb_enum" || got[1] != "ldap_enum" {
		t.Fatalf("unexpected split: %q", got)
	}
}

func TestDecodePathRequestBound(t *testing.T) {
	req, err := decodePathRequest([]byte(`{"src":"A","dst":"B"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.MaxLen != models.DefaultMaxPathLen {
		t.Fatalf("absent max_len should keep the default, got %d", req.MaxLen)
	}

	req, err = decodePathRequest([]byte(`{"src":"A","dst":"B","max_len":0}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.MaxLen != 0 {
		t.Fatalf("explicit zero must stay zero, got %d", req.MaxLen)
	}

	if _, err := decodePathRequest([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

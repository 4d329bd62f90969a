package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"attackgraph/config"
	"attackgraph/internal/executor"
	"attackgraph/internal/graph"
	"attackgraph/internal/logger"
	"attackgraph/internal/metrics"
	"attackgraph/internal/modules"
	"attackgraph/internal/output/resulthttp"
	"attackgraph/internal/output/resultjson"
	"attackgraph/internal/pipeline"
	"attackgraph/internal/resultcache"
	"attackgraph/internal/rules"
	"attackgraph/internal/scheduler"
	"attackgraph/internal/snapshot"
)

// redisSnapshotPrefix marks a -load/-save value as a named snapshot in Redis.
const redisSnapshotPrefix = "redis:"

func loadRuntime(configArg string) (*config.Config, error) {
	configPath := findConfigFile(configArg)
	cfg, err := config.LoadOrEmpty(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	applyDefaults(cfg)

	lc := cfg.AttackGraph.Logging
	if err := logger.Init(logger.Options{
		Enabled: lc.Enabled,
		Level:   lc.Level,
		File:    lc.File,
		Console: lc.Console,
		Format:  lc.Format,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Infof("Config loaded from: %s", configPath)
	return cfg, nil
}

func buildLimits(cfg *config.Config) scheduler.Limits {
	sc := cfg.AttackGraph.Scheduler
	limits := scheduler.AdaptiveLimits(sc.Population)
	if sc.PerHostQPS > 0 {
		limits.PerHostQPS = sc.PerHostQPS
	}
	for proto, qps := range sc.PerProtoQPS {
		if qps > 0 {
			limits.PerProtoQPS[proto] = qps
		}
	}
	return limits
}

func buildGate(cfg *config.Config, limits scheduler.Limits) *scheduler.Gate {
	return scheduler.NewGate(limits, *cfg.AttackGraph.Scheduler.Jitter)
}

func buildRegistry(cfg *config.Config) (modules.Registry, error) {
	ag := cfg.AttackGraph
	reg := modules.NewRegistry(modules.Env{
		Runner:    executor.New(ag.Executor.DefaultTimeout),
		Artifacts: executor.NewArtifacts(ag.OutputDir),
		Timeouts:  ag.Executor.Timeouts,
	})
	return reg.Select(ag.Modules.Enabled)
}

func buildEngine(cfg *config.Config) (rules.Engine, error) {
	rc := cfg.AttackGraph.Rules
	if !rc.Enabled {
		return &rules.NoopEngine{}, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; node tagging disabled")
		return &rules.NoopEngine{}, nil
	}
	engine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules from %s: %w", rc.Path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; node tagging is effectively disabled")
	}
	return engine, nil
}

func buildCache(cfg *config.Config) (*resultcache.Cache, error) {
	cc := cfg.AttackGraph.Cache
	if !cc.Enabled {
		return nil, nil
	}
	return resultcache.New(resultcache.Config{
		Addr:      cc.Redis.Addr,
		Password:  cc.Redis.Password,
		DB:        cc.Redis.DB,
		KeyPrefix: cc.Redis.KeyPrefix,
	})
}

func buildWriter(cfg *config.Config) (pipeline.ResultWriter, error) {
	oc := cfg.AttackGraph.Output
	switch oc.Mode {
	case "file":
		w, err := resultjson.NewWriter(oc.File.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("Output mode: file (%s)", oc.File.Path)
		return w, nil
	case "http":
		w, err := resulthttp.NewWriter(resulthttp.Config{
			URL:     oc.HTTP.URL,
			Timeout: oc.HTTP.Timeout,
			Headers: oc.HTTP.Headers,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Output mode: http (%s)", oc.HTTP.URL)
		return w, nil
	case "both":
		fw, err := resultjson.NewWriter(oc.File.Path)
		if err != nil {
			return nil, err
		}
		hw, err := resulthttp.NewWriter(resulthttp.Config{
			URL:     oc.HTTP.URL,
			Timeout: oc.HTTP.Timeout,
			Headers: oc.HTTP.Headers,
		})
		if err != nil {
			fw.Close()
			return nil, err
		}
		logger.Infof("Output mode: file (%s) and http (%s)", oc.File.Path, oc.HTTP.URL)
		return pipeline.MultiWriter{fw, hw}, nil
	default:
		return nil, fmt.Errorf("unknown output mode: %s", oc.Mode)
	}
}

// buildPipeline wires everything except the job source.
func buildPipeline(cfg *config.Config, store *graph.Store, source pipeline.JobSource, m *metrics.Metrics) (*pipeline.ModulePipeline, func(), error) {
	ag := cfg.AttackGraph
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	cache, err := buildCache(cfg)
	if err != nil {
		return nil, nil, err
	}
	writer, err := buildWriter(cfg)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, nil, err
	}

	limits := buildLimits(cfg)
	pc := pipeline.Config{
		Source:        source,
		Registry:      reg,
		Session:       ag.Session,
		Gate:          buildGate(cfg, limits),
		Limits:        limits,
		Engine:        engine,
		Store:         store,
		Writer:        writer,
		Metrics:       m,
		Workers:       ag.Pipeline.Workers,
		BatchSize:     ag.Pipeline.BatchSize,
		FlushInterval: ag.Pipeline.FlushInterval,
	}
	if cache != nil {
		pc.Cache = cache
	}
	release := func() {
		if cache != nil {
			if err := cache.Close(); err != nil {
				logger.Errorf("Failed to close result cache: %v", err)
			}
		}
	}
	return pipeline.NewModulePipeline(pc), release, nil
}

func snapshotStore(cfg *config.Config) (*snapshot.RedisStore, error) {
	rc := cfg.AttackGraph.Snapshot.Redis
	return snapshot.NewRedisStore(snapshot.RedisConfig{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.KeyPrefix,
	})
}

// loadGraph fills store from a snapshot file or a "redis:<name>" snapshot.
func loadGraph(ctx context.Context, cfg *config.Config, ref string, store *graph.Store) error {
	if ref == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(ref, redisSnapshotPrefix); ok {
		rs, err := snapshotStore(cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if err := rs.Load(ctx, name, store); err != nil {
			return err
		}
	} else if err := snapshot.Load(ref, store); err != nil {
		return err
	}
	nodes, edges := store.Stats()
	logger.Infof("Snapshot %s loaded: nodes=%d edges=%d", ref, nodes, edges)
	return nil
}

func saveGraph(ctx context.Context, cfg *config.Config, ref string, store *graph.Store) error {
	if ref == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(ref, redisSnapshotPrefix); ok {
		rs, err := snapshotStore(cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if err := rs.Save(ctx, name, store); err != nil {
			return err
		}
	} else if err := snapshot.Save(ref, store); err != nil {
		return err
	}
	logger.Infof("Snapshot saved to %s", ref)
	return nil
}

func fatalf(format string, args ...interface{}) int {
	logger.Errorf(format, args...)
	log.Printf(format, args...)
	return 1
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

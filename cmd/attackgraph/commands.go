package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"attackgraph/config"
	"attackgraph/internal/analyzer"
	"attackgraph/internal/discovery"
	"attackgraph/internal/executor"
	"attackgraph/internal/graph"
	inputredis "attackgraph/internal/input/redis"
	"attackgraph/internal/logger"
	"attackgraph/internal/metrics"
	"attackgraph/internal/modules"
	"attackgraph/internal/snapshot"
	"attackgraph/pkg/models"
)

func queueConfig(rc config.RedisConfig) inputredis.Config {
	return inputredis.Config{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		Key:          rc.Key,
		BlockTimeout: rc.BlockTimeout,
	}
}

func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	load := fs.String("load", "", "Snapshot to load on start (file path or redis:<name>)")
	save := fs.String("save", "", "Snapshot to save on shutdown (file path or redis:<name>)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadRuntime(*configArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ag := cfg.AttackGraph
	logger.Infof("attackgraph worker starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := graph.New()
	if err := loadGraph(ctx, cfg, *load, store); err != nil {
		return fatalf("Failed to load snapshot: %v", err)
	}

	rc := ag.Input.Redis
	consumer, err := inputredis.NewConsumer(queueConfig(rc))
	if err != nil {
		return fatalf("Failed to create Redis consumer: %v", err)
	}

	var m *metrics.Metrics
	var srv *http.Server
	if ag.Metrics.Enabled {
		m = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv = &http.Server{Addr: ag.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
		logger.Infof("Metrics listening on %s/metrics", ag.Metrics.Addr)
	}

	pipe, release, err := buildPipeline(cfg, store, consumer, m)
	if err != nil {
		consumer.Close()
		return fatalf("Failed to build pipeline: %v", err)
	}
	defer release()
	m.SetGraph(store.Stats())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	<-done

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdownCtx)
		stop()
	}

	saveCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := saveGraph(saveCtx, cfg, *save, store); err != nil {
		return fatalf("Failed to save snapshot: %v", err)
	}

	logger.Infof("attackgraph worker stopped")
	return 0
}

func runModules(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	moduleList := fs.String("module", "", "Comma-separated module names")
	targetList := fs.String("target", "", "Comma-separated target hosts")
	proto := fs.String("proto", "", "Protocol override used for pacing")
	load := fs.String("load", "", "Snapshot to load first (file path or redis:<name>)")
	save := fs.String("save", "", "Snapshot to save afterwards (file path or redis:<name>)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	mods, hosts := splitList(*moduleList), splitList(*targetList)
	if len(mods) == 0 || len(hosts) == 0 {
		fmt.Fprintln(os.Stderr, "run: -module and -target are required")
		return 2
	}

	cfg, err := loadRuntime(*configArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := graph.New()
	if err := loadGraph(ctx, cfg, *load, store); err != nil {
		return fatalf("Failed to load snapshot: %v", err)
	}

	pipe, release, err := buildPipeline(cfg, store, nil, nil)
	if err != nil {
		return fatalf("Failed to build pipeline: %v", err)
	}
	defer release()
	defer pipe.Close()

	var jobs []models.JobRequest
	for _, host := range hosts {
		for _, mod := range mods {
			jobs = append(jobs, models.JobRequest{Module: mod, Target: models.Target{Host: host, Proto: *proto}})
		}
	}
	results := pipe.RunBatch(ctx, jobs)

	summaries := make([]models.ResultSummary, 0, len(results))
	code := 0
	for _, res := range results {
		summaries = append(summaries, res.Summary())
		if res.Status != models.StatusOK {
			code = 1
		}
	}
	if err := writeJSON(os.Stdout, summaries); err != nil {
		return fatalf("Failed to print results: %v", err)
	}

	if err := saveGraph(context.Background(), cfg, *save, store); err != nil {
		return fatalf("Failed to save snapshot: %v", err)
	}
	return code
}

func runDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	domain := fs.String("domain", "", "Root domain to discover")
	save := fs.String("save", "", "Snapshot to save afterwards (file path or redis:<name>)")
	enqueue := fs.String("enqueue", "", "Comma-separated modules to enqueue for every scanned host")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*domain) == "" {
		fmt.Fprintln(os.Stderr, "discover: -domain is required")
		return 2
	}

	cfg, err := loadRuntime(*configArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ag := cfg.AttackGraph

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dc := ag.Discovery
	res, err := discovery.Run(ctx, executor.New(ag.Executor.DefaultTimeout), *domain, discovery.Config{
		OutDir:           filepath.Join(ag.OutputDir, "discovery"),
		Ports:            dc.Ports,
		Scripts:          dc.Scripts,
		SubfinderTimeout: dc.SubfinderTimeout,
		DnsxTimeout:      dc.DnsxTimeout,
		NmapTimeout:      dc.NmapTimeout,
	})
	if err != nil {
		return fatalf("Discovery failed: %v", err)
	}

	store := graph.New()
	store.Merge(res.Batch)
	logger.Infof("Discovery merged: population=%d hosts=%d per_host_qps=%.3f", res.Summary.Population, res.Summary.Hosts, res.Limits.PerHostQPS)

	if mods := splitList(*enqueue); len(mods) > 0 && len(res.Hosts) > 0 {
		producer, err := inputredis.NewProducer(queueConfig(ag.Input.Redis))
		if err != nil {
			return fatalf("Failed to create Redis producer: %v", err)
		}
		defer producer.Close()
		var jobs []models.JobRequest
		for _, host := range res.Hosts {
			for _, mod := range mods {
				jobs = append(jobs, models.JobRequest{Module: mod, Target: models.Target{Host: host}})
			}
		}
		if err := producer.Push(ctx, jobs...); err != nil {
			return fatalf("Failed to enqueue jobs: %v", err)
		}
		logger.Infof("Enqueued %d jobs", len(jobs))
	}

	if err := saveGraph(ctx, cfg, *save, store); err != nil {
		return fatalf("Failed to save snapshot: %v", err)
	}
	if err := writeJSON(os.Stdout, res.Summary); err != nil {
		return fatalf("Failed to print summary: %v", err)
	}
	return 0
}

func runEnqueue(args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	moduleList := fs.String("module", "", "Comma-separated module names")
	targetList := fs.String("target", "", "Comma-separated target hosts")
	proto := fs.String("proto", "", "Protocol override used for pacing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	mods, hosts := splitList(*moduleList), splitList(*targetList)
	if len(mods) == 0 || len(hosts) == 0 {
		fmt.Fprintln(os.Stderr, "enqueue: -module and -target are required")
		return 2
	}

	cfg, err := loadRuntime(*configArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	producer, err := inputredis.NewProducer(queueConfig(cfg.AttackGraph.Input.Redis))
	if err != nil {
		return fatalf("Failed to create Redis producer: %v", err)
	}
	defer producer.Close()

	var jobs []models.JobRequest
	for _, host := range hosts {
		for _, mod := range mods {
			jobs = append(jobs, models.JobRequest{Module: mod, Target: models.Target{Host: host, Proto: *proto}})
		}
	}
	ctx := context.Background()
	if err := producer.Push(ctx, jobs...); err != nil {
		return fatalf("Failed to enqueue jobs: %v", err)
	}
	n, err := producer.Len(ctx)
	if err != nil {
		return fatalf("Failed to read queue length: %v", err)
	}
	fmt.Printf("enqueued=%d queued=%d\n", len(jobs), n)
	return 0
}

func runPath(args []string) int {
	fs := flag.NewFlagSet("path", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	snap := fs.String("snapshot", "", "Snapshot file (defaults to snapshot.path)")
	request := fs.String("request", "", "Path request JSON file, or - for stdin")
	src := fs.String("src", "", "Source node id")
	dst := fs.String("dst", "", "Destination node id")
	maxLen := fs.Int("max-len", models.DefaultMaxPathLen, "Maximum path length in edges")
	types := fs.String("types", "", "Comma-separated allowed edge types")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *snap == "" {
		*snap = configuredSnapshot(*configArg)
	}
	if *snap == "" {
		fmt.Fprintln(os.Stderr, "path: -snapshot is required")
		return 2
	}

	req := models.PathRequest{Src: *src, Dst: *dst, MaxLen: *maxLen, AllowedEdgeTypes: splitList(*types)}
	if *request != "" {
		data, err := readInput(*request)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read request: %v\n", err)
			return 1
		}
		req, err = decodePathRequest(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to decode request: %v\n", err)
			return 1
		}
	}
	if req.Src == "" || req.Dst == "" {
		fmt.Fprintln(os.Stderr, "path: src and dst are required")
		return 2
	}

	store, err := snapshot.LoadStore(*snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load snapshot: %v\n", err)
		return 1
	}
	if err := writeJSON(os.Stdout, analyzer.FindPath(store, req)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to print result: %v\n", err)
		return 1
	}
	return 0
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	snap := fs.String("snapshot", "", "Snapshot file (defaults to snapshot.path)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *snap == "" {
		*snap = configuredSnapshot(*configArg)
	}
	if *snap == "" {
		fmt.Fprintln(os.Stderr, "export: -snapshot is required")
		return 2
	}
	store, err := snapshot.LoadStore(*snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load snapshot: %v\n", err)
		return 1
	}
	if err := writeJSON(os.Stdout, store.Export()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to print export: %v\n", err)
		return 1
	}
	return 0
}

func runList(args []string) int {
	fs := flag.NewFlagSet("modules", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	reg := modules.NewRegistry(modules.Env{})
	for _, name := range reg.Names() {
		m, _ := reg.Get(name)
		auth := make([]string, 0, len(m.SupportedAuth()))
		for _, a := range m.SupportedAuth() {
			auth = append(auth, string(a))
		}
		fmt.Printf("%-12s proto=%-6s auth=%s\n", name, m.Proto(), strings.Join(auth, ","))
	}
	return 0
}

// decodePathRequest parses a path request; an absent max_len keeps the
// default bound while an explicit 0 stays 0.
func decodePathRequest(data []byte) (models.PathRequest, error) {
	req := models.PathRequest{MaxLen: models.DefaultMaxPathLen}
	if err := json.Unmarshal(data, &req); err != nil {
		return models.PathRequest{}, err
	}
	return req, nil
}

// configuredSnapshot reads snapshot.path without initializing logging, so
// query output on stdout stays clean.
func configuredSnapshot(configArg string) string {
	cfg, err := config.LoadOrEmpty(findConfigFile(configArg))
	if err != nil {
		return ""
	}
	return cfg.AttackGraph.Snapshot.Path
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

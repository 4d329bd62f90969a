package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attackgraph/internal/graph"
	"attackgraph/internal/logger"
	"attackgraph/internal/metrics"
	"attackgraph/internal/modules"
	"attackgraph/internal/rules"
	"attackgraph/internal/scheduler"
	"attackgraph/pkg/models"
)

// JobSource yields queued jobs. A nil job with a nil error means nothing was
// available before the source's own timeout.
type JobSource interface {
	PopJob(ctx context.Context) (*models.JobRequest, error)
	Close() error
}

// ResultCache stores successful results per module and host.
type ResultCache interface {
	Get(ctx context.Context, module, host string) (models.ModuleResult, bool, error)
	Put(ctx context.Context, res models.ModuleResult, ttl time.Duration) error
}

// Config wires a ModulePipeline. Only Registry and Store are required.
type Config struct {
	Source   JobSource
	Registry modules.Registry
	Session  models.Session
	Gate     *scheduler.Gate
	Limits   scheduler.Limits
	Cache    ResultCache
	Engine   rules.Engine
	Store    *graph.Store
	Writer   ResultWriter
	Metrics  *metrics.Metrics

	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// ModulePipeline consumes module jobs, runs them under the rate gate and
// merges their output into the graph store.
type ModulePipeline struct {
	source   JobSource
	registry modules.Registry
	session  models.Session
	gate     *scheduler.Gate
	limits   scheduler.Limits
	cache    ResultCache
	engine   rules.Engine
	store    *graph.Store
	writer   ResultWriter
	metrics  *metrics.Metrics

	workers       int
	batchSize     int
	flushInterval time.Duration
}

// NewModulePipeline creates a pipeline from cfg.
func NewModulePipeline(cfg Config) *ModulePipeline {
	p := &ModulePipeline{
		source:        cfg.Source,
		registry:      cfg.Registry,
		session:       cfg.Session,
		gate:          cfg.Gate,
		limits:        cfg.Limits,
		cache:         cfg.Cache,
		engine:        cfg.Engine,
		store:         cfg.Store,
		writer:        cfg.Writer,
		metrics:       cfg.Metrics,
		workers:       cfg.Workers,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}
	if p.store == nil {
		p.store = graph.New()
	}
	if p.engine == nil {
		p.engine = &rules.NoopEngine{}
	}
	if p.limits.CacheTTL == nil {
		p.limits = scheduler.AdaptiveLimits(0)
	}
	return p
}

// Store returns the graph the pipeline merges into.
func (p *ModulePipeline) Store() *graph.Store {
	return p.store
}

// Run consumes jobs until ctx is cancelled.
func (p *ModulePipeline) Run(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("pipeline has no job source")
	}
	logger.Infof("Module pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}

	jobCh := make(chan models.JobRequest, p.workers*4)
	resCh := make(chan models.ResultSummary, p.workers*4)

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		p.readLoop(ctx, jobCh)
		close(jobCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(ctx, jobCh, resCh)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.writeLoop(ctx, resCh)
	}()

	readers.Wait()
	workers.Wait()
	close(resCh)
	<-done
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *ModulePipeline) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close result writer: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

// Process runs one job through the gate, cache, module, rules and store.
func (p *ModulePipeline) Process(ctx context.Context, job models.JobRequest) models.ModuleResult {
	return p.process(ctx, job, true)
}

// RunBatch runs jobs with one FIFO queue per host, writes their summaries
// and returns results in job order.
func (p *ModulePipeline) RunBatch(ctx context.Context, jobs []models.JobRequest) []models.ModuleResult {
	results := make([]models.ModuleResult, len(jobs))
	queued := make([]scheduler.Job, 0, len(jobs))
	for i, job := range jobs {
		queued = append(queued, scheduler.Job{
			Name:  job.Module,
			Proto: p.protoFor(job),
			Host:  job.Target.Host,
			Run: func(ctx context.Context) error {
				results[i] = p.process(ctx, job, false)
				if results[i].Status != models.StatusOK {
					return fmt.Errorf("%s: %s", results[i].Status, results[i].Error)
				}
				return nil
			},
		})
	}
	for _, jerr := range scheduler.DrainPerHost(ctx, p.gate, queued) {
		if results[jerr.Index].Module == "" {
			results[jerr.Index] = p.failed(jobs[jerr.Index], jerr.Err)
		}
		logger.Warnf("Job failed: %v", jerr)
	}

	if p.writer != nil && len(results) > 0 {
		summaries := make([]models.ResultSummary, 0, len(results))
		for _, res := range results {
			summaries = append(summaries, res.Summary())
		}
		if err := p.writer.WriteResults(summaries); err != nil {
			logger.Errorf("Failed to write results: %v", err)
		}
	}
	return results
}

func (p *ModulePipeline) readLoop(ctx context.Context, out chan<- models.JobRequest) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.source.PopJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop job: %v", err)
			p.metrics.Job("invalid")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if job == nil {
			continue
		}
		select {
		case out <- *job:
		case <-ctx.Done():
			return
		}
	}
}

func (p *ModulePipeline) workerLoop(ctx context.Context, in <-chan models.JobRequest, out chan<- models.ResultSummary) {
	for job := range in {
		res := p.Process(ctx, job)
		if res.Status == models.StatusOK {
			p.metrics.Job("processed")
		} else {
			p.metrics.Job("failed")
		}
		out <- res.Summary()
	}
}

func (p *ModulePipeline) writeLoop(ctx context.Context, in <-chan models.ResultSummary) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batch []models.ResultSummary

	flush := func() {
		if p.writer == nil || len(batch) == 0 {
			batch = nil
			return
		}
		for {
			if err := p.writer.WriteResults(batch); err != nil {
				logger.Errorf("Failed to write results: %v", err)
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}
			batch = nil
			return
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case item, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) >= p.batchSize {
				flush()
			}
		}
	}
}

func (p *ModulePipeline) process(ctx context.Context, job models.JobRequest, acquire bool) models.ModuleResult {
	m, err := p.registry.Get(job.Module)
	if err != nil {
		res := p.failed(job, err)
		p.metrics.ObserveResult(res)
		return res
	}
	proto := p.protoFor(job)
	host := job.Target.Host

	res, hit := p.lookup(ctx, m.Name(), host)
	if !hit {
		if acquire && p.gate != nil {
			if err := p.gate.Acquire(ctx, host, proto); err != nil {
				res := p.failed(job, fmt.Errorf("rate gate: %w", err))
				p.metrics.ObserveResult(res)
				return res
			}
		}
		res = m.Run(ctx, p.session, job.Target)
		p.remember(ctx, res, proto)
	}

	batch := res.Batch()
	tagged := rules.TagBatch(p.engine, &batch)
	res.Nodes = batch.Nodes
	p.metrics.RuleTags(tagged)

	p.store.Merge(batch)
	p.metrics.SetGraph(p.store.Stats())
	p.metrics.ObserveResult(res)

	logger.WithFields(logger.Fields{
		"module": res.Module,
		"target": res.Target,
		"status": res.Status,
		"nodes":  len(res.Nodes),
		"edges":  len(res.Edges),
		"cached": res.Cached,
	}).Info("module result merged")
	return res
}

func (p *ModulePipeline) lookup(ctx context.Context, module, host string) (models.ModuleResult, bool) {
	if p.cache == nil {
		return models.ModuleResult{}, false
	}
	res, ok, err := p.cache.Get(ctx, module, host)
	if err != nil {
		logger.Warnf("Result cache lookup failed for %s on %s: %v", module, host, err)
		return models.ModuleResult{}, false
	}
	p.metrics.CacheLookup(ok)
	return res, ok
}

func (p *ModulePipeline) remember(ctx context.Context, res models.ModuleResult, proto string) {
	if p.cache == nil || res.Status != models.StatusOK {
		return
	}
	ttl := p.limits.TTLFor(cacheCategory(proto))
	if err := p.cache.Put(ctx, res, ttl); err != nil {
		logger.Warnf("Result cache store failed for %s on %s: %v", res.Module, res.Target, err)
	}
}

func (p *ModulePipeline) protoFor(job models.JobRequest) string {
	if job.Target.Proto != "" {
		return job.Target.Proto
	}
	if m, err := p.registry.Get(job.Module); err == nil {
		return m.Proto()
	}
	return ""
}

func (p *ModulePipeline) failed(job models.JobRequest, err error) models.ModuleResult {
	now := time.Now().UTC()
	return models.ModuleResult{
		Module:    job.Module,
		Target:    job.Target.Host,
		Status:    models.StatusToolError,
		StartedAt: now,
		EndedAt:   now,
		Artifacts: []string{},
		Nodes:     []models.Node{},
		Edges:     []models.Edge{},
		ExitCode:  -1,
		Error:     err.Error(),
	}
}

func cacheCategory(proto string) string {
	switch proto {
	case "ldap", "ldaps":
		return scheduler.CacheLDAP
	case "smb":
		return scheduler.CacheSMB
	default:
		return scheduler.CacheDiscovery
	}
}

package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inputredis "attackgraph/internal/input/redis"
	"attackgraph/internal/modules"
	"attackgraph/internal/resultcache"
	"attackgraph/internal/rules"
	"attackgraph/pkg/models"
)

type fakeModule struct {
	name   string
	status models.Status
	runs   atomic.Int32
}

func (m *fakeModule) Name() string                       { return m.name }
func (m *fakeModule) Proto() string                      { return "smb" }
func (m *fakeModule) SupportedAuth() []models.AuthMethod { return []models.AuthMethod{models.AuthNull} }

func (m *fakeModule) Run(ctx context.Context, session models.Session, target models.Target) models.ModuleResult {
	m.runs.Add(1)
	status := m.status
	if status == "" {
		status = models.StatusOK
	}
	now := time.Now().UTC()
	return models.ModuleResult{
		RunID:     "run-" + target.Host,
		Module:    m.name,
		Tool:      "fake",
		Target:    target.Host,
		Status:    status,
		StartedAt: now,
		EndedAt:   now,
		Artifacts: []string{},
		Nodes: []models.Node{
			{ID: "HOST:" + target.Host, Type: models.NodeHost, Attrs: map[string]interface{}{"admin_access": true}},
			{ID: "SHARE:" + target.Host + ":C$", Type: models.NodeShare, Attrs: map[string]interface{}{}},
		},
		Edges: []models.Edge{
			{Src: "HOST:" + target.Host, Dst: "SHARE:" + target.Host + ":C$", Type: "HasShare"},
		},
	}
}

type adminEngine struct{}

func (adminEngine) Apply(node models.Node) []models.RuleTag {
	if node.Attrs["admin_access"] == true {
		return []models.RuleTag{{ID: "smb-admin", Severity: "critical"}}
	}
	return nil
}

type memWriter struct {
	mu      sync.Mutex
	results []models.ResultSummary
	closed  bool
}

func (w *memWriter) WriteResults(results []models.ResultSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results = append(w.results, results...)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.results)
}

func TestProcessMergesTaggedBatch(t *testing.T) {
	mod := &fakeModule{name: "smb_enum"}
	p := NewModulePipeline(Config{
		Registry: modules.Registry{mod.name: mod},
		Engine:   adminEngine{},
	})

	res := p.Process(context.Background(), models.JobRequest{Module: "smb_enum", Target: models.Target{Host: "10.0.0.5"}})
	require.Equal(t, models.StatusOK, res.Status)

	nodes, edges := p.Store().Stats()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)

	host, ok := p.Store().Node("HOST:10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, []string{"smb-admin"}, host.Attrs[rules.TagsAttr])
	assert.Equal(t, "critical", host.Attrs[rules.SeverityAttr])
}

func TestProcessUnknownModule(t *testing.T) {
	p := NewModulePipeline(Config{Registry: modules.Registry{}})
	res := p.Process(context.Background(), models.JobRequest{Module: "nope", Target: models.Target{Host: "h"}})
	assert.Equal(t, models.StatusToolError, res.Status)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Error)
	nodes, _ := p.Store().Stats()
	assert.Zero(t, nodes)
}

func TestProcessServesRepeatFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := resultcache.New(resultcache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer cache.Close()

	mod := &fakeModule{name: "smb_enum"}
	p := NewModulePipeline(Config{
		Registry: modules.Registry{mod.name: mod},
		Cache:    cache,
	})
	job := models.JobRequest{Module: "smb_enum", Target: models.Target{Host: "10.0.0.5"}}

	first := p.Process(context.Background(), job)
	second := p.Process(context.Background(), job)

	assert.Equal(t, int32(1), mod.runs.Load())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
}

func TestProcessDoesNotCacheFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := resultcache.New(resultcache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer cache.Close()

	mod := &fakeModule{name: "smb_enum", status: models.StatusNetError}
	p := NewModulePipeline(Config{Registry: modules.Registry{mod.name: mod}, Cache: cache})
	job := models.JobRequest{Module: "smb_enum", Target: models.Target{Host: "10.0.0.5"}}

	p.Process(context.Background(), job)
	p.Process(context.Background(), job)
	assert.Equal(t, int32(2), mod.runs.Load())
}

func TestRunBatchKeepsJobOrder(t *testing.T) {
	ok := &fakeModule{name: "smb_enum"}
	bad := &fakeModule{name: "ssh_enum", status: models.StatusAuthError}
	writer := &memWriter{}
	p := NewModulePipeline(Config{Registry: modules.Registry{ok.name: ok, bad.name: bad}, Writer: writer})

	results := p.RunBatch(context.Background(), []models.JobRequest{
		{Module: "smb_enum", Target: models.Target{Host: "a"}},
		{Module: "ssh_enum", Target: models.Target{Host: "b"}},
		{Module: "smb_enum", Target: models.Target{Host: "b"}},
	})
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Target)
	assert.Equal(t, models.StatusAuthError, results[1].Status)
	assert.Equal(t, models.StatusOK, results[2].Status)
	assert.Equal(t, "b", results[2].Target)
	assert.Equal(t, 3, writer.count())
}

func TestRunConsumesQueueAndWritesResults(t *testing.T) {
	mr := miniredis.RunT(t)
	qcfg := inputredis.Config{Addr: mr.Addr(), Key: "jobs", BlockTimeout: 50 * time.Millisecond}

	producer, err := inputredis.NewProducer(qcfg)
	require.NoError(t, err)
	defer producer.Close()
	consumer, err := inputredis.NewConsumer(qcfg)
	require.NoError(t, err)

	mod := &fakeModule{name: "smb_enum"}
	writer := &memWriter{}
	p := NewModulePipeline(Config{
		Source:        consumer,
		Registry:      modules.Registry{mod.name: mod},
		Writer:        writer,
		Workers:       2,
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, producer.Push(context.Background(),
		models.JobRequest{Module: "smb_enum", Target: models.Target{Host: "10.0.0.5"}},
		models.JobRequest{Module: "smb_enum", Target: models.Target{Host: "10.0.0.6"}},
	))

	require.Eventually(t, func() bool { return writer.count() == 2 }, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline did not stop")
	}
	require.NoError(t, p.Close())
	assert.True(t, writer.closed)

	nodes, _ := p.Store().Stats()
	assert.Equal(t, 4, nodes)
}

func TestRunWithoutSourceFails(t *testing.T) {
	p := NewModulePipeline(Config{Registry: modules.Registry{}})
	assert.Error(t, p.Run(context.Background()))
}

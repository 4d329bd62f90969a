package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attackgraph/pkg/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	start := time.Unix(1700000000, 0)
	m.ObserveResult(models.ModuleResult{Module: "smb_enum", Status: models.StatusOK, StartedAt: start, EndedAt: start.Add(3 * time.Second)})
	m.ObserveResult(models.ModuleResult{Module: "smb_enum", Status: models.StatusAuthError, StartedAt: start, EndedAt: start.Add(time.Second)})
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.Job("processed")
	m.RuleTags(2)
	m.SetGraph(10, 4)

	body := scrape(t, m)
	for _, want := range []string{
		`attackgraph_module_runs_total{module="smb_enum",status="ok"} 1`,
		`attackgraph_module_runs_total{module="smb_enum",status="auth_error"} 1`,
		`attackgraph_module_duration_seconds_count{module="smb_enum"} 2`,
		`attackgraph_result_cache_lookups_total{result="hit"} 1`,
		`attackgraph_jobs_total{outcome="processed"} 1`,
		`attackgraph_rule_tagged_nodes_total 2`,
		`attackgraph_graph_nodes 10`,
		`attackgraph_graph_edges 4`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition:\n%s", want, body)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveResult(models.ModuleResult{Module: "x"})
	m.CacheLookup(true)
	m.Job("processed")
	m.RuleTags(1)
	m.SetGraph(1, 1)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

package analyzer

import (
	"encoding/json"
	"testing"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

// chain builds a three-hop route to VULN:ESC1:t plus a side edge to HOST:x.
func chain() *graph.Store {
	s := graph.New()
	s.UpsertEdge("USER:a", "GROUP:g", "MemberOf", nil)
	s.UpsertEdge("GROUP:g", "TEMPLATE:t", "Enrollment Rights", nil)
	s.UpsertEdge("TEMPLATE:t", "VULN:ESC1:t", "HasVuln", nil)
	s.UpsertEdge("USER:a", "HOST:x", "AdminTo", nil)
	return s
}

func TestFindPathReturnsShortestWithinBound(t *testing.T) {
	s := chain()
	res := FindPath(s, models.PathRequest{Src: "USER:a", Dst: "VULN:ESC1:t", MaxLen: 3})
	if res.Outcome != models.PathFound {
		t.Fatalf("expected path found, got %+v", res)
	}
	if len(res.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(res.Edges))
	}
	wantNodes := []string{"USER:a", "GROUP:g", "TEMPLATE:t", "VULN:ESC1:t"}
	for i, n := range wantNodes {
		if res.Nodes[i] != n {
			t.Fatalf("unexpected node sequence: %v", res.Nodes)
		}
	}
	if res.Edges[1].Type != "Enrollment Rights" || res.Edges[1].Src != "GROUP:g" || res.Edges[1].Dst != "TEMPLATE:t" {
		t.Fatalf("unexpected second hop: %+v", res.Edges[1])
	}
}

func TestFindPathTooLongCarriesTrueLength(t *testing.T) {
	s := chain()
	res := FindPath(s, models.PathRequest{Src: "USER:a", Dst: "VULN:ESC1:t", MaxLen: 2})
	if res.Outcome != models.PathTooLong {
		t.Fatalf("expected too long, got %+v", res)
	}
	if res.Len != 3 {
		t.Fatalf("expected len 3, got %d", res.Len)
	}
	if len(res.Nodes) != 0 {
		t.Fatalf("too long result must not carry the path")
	}
}

func TestFindPathZeroBoundRejectsSingleEdge(t *testing.T) {
	s := graph.New()
	s.UpsertEdge("A", "B", "X", nil)

	res := FindPath(s, models.PathRequest{Src: "A", Dst: "B", MaxLen: 0})
	if res.Outcome != models.PathTooLong || res.Len != 1 {
		t.Fatalf("expected too long with len 1, got %+v", res)
	}

	res = FindPath(s, models.PathRequest{Src: "A", Dst: "A", MaxLen: 0})
	if res.Outcome != models.PathFound || len(res.Nodes) != 1 {
		t.Fatalf("expected zero-edge path to fit a zero bound, got %+v", res)
	}

	res = FindPath(s, models.PathRequest{Src: "A", Dst: "B", MaxLen: -1})
	if res.Outcome != models.PathFound {
		t.Fatalf("expected negative bound to fall back to the default, got %+v", res)
	}
}

func TestFindPathPrefersShorterRoute(t *testing.T) {
	s := chain()
	s.UpsertEdge("USER:a", "TEMPLATE:t", "GenericAll", nil)
	res := FindPath(s, models.PathRequest{Src: "USER:a", Dst: "VULN:ESC1:t", MaxLen: models.DefaultMaxPathLen})
	if res.Outcome != models.PathFound || len(res.Edges) != 2 {
		t.Fatalf("expected 2-hop path, got %+v", res)
	}
}

func TestFindPathFilterRemovesOnlyRoute(t *testing.T) {
	s := chain()
	unrestricted := FindPath(s, models.PathRequest{Src: "USER:a", Dst: "VULN:ESC1:t", MaxLen: models.DefaultMaxPathLen})
	if unrestricted.Outcome != models.PathFound {
		t.Fatalf("expected unrestricted path")
	}

	res := FindPath(s, models.PathRequest{
		Src:              "USER:a",
		Dst:              "VULN:ESC1:t",
		AllowedEdgeTypes: []string{"MemberOf", "HasVuln"},
		MaxLen:           models.DefaultMaxPathLen,
	})
	if res.Outcome != models.PathNone {
		t.Fatalf("expected no path once Enrollment Rights is excluded, got %+v", res)
	}
}

func TestFindPathFilterDropsIsolatedNodes(t *testing.T) {
	s := graph.New()
	s.UpsertNode("HOST:lonely", models.NodeHost, nil)

	res := FindPath(s, models.PathRequest{Src: "HOST:lonely", Dst: "HOST:lonely"})
	if res.Outcome != models.PathFound || len(res.Nodes) != 1 {
		t.Fatalf("expected trivial path without filter, got %+v", res)
	}

	res = FindPath(s, models.PathRequest{Src: "HOST:lonely", Dst: "HOST:lonely", AllowedEdgeTypes: []string{"AdminTo"}})
	if res.Outcome != models.PathNone {
		t.Fatalf("expected isolated node to be dropped by the filter, got %+v", res)
	}
}

func TestFindPathRespectsDirection(t *testing.T) {
	s := chain()
	res := FindPath(s, models.PathRequest{Src: "VULN:ESC1:t", Dst: "USER:a"})
	if res.Outcome != models.PathNone {
		t.Fatalf("expected no reverse path, got %+v", res)
	}
}

func TestFindPathUnknownEndpoint(t *testing.T) {
	res := FindPath(chain(), models.PathRequest{Src: "USER:nobody", Dst: "USER:a"})
	if res.Outcome != models.PathNone {
		t.Fatalf("expected no path for missing source, got %+v", res)
	}
}

func TestPathResultJSONShapes(t *testing.T) {
	found, _ := json.Marshal(FindPath(chain(), models.PathRequest{Src: "USER:a", Dst: "HOST:x", MaxLen: 1}))
	if string(found) != `{"ok":true,"nodes":["USER:a","HOST:x"],"edges":[{"src":"USER:a","dst":"HOST:x","type":"AdminTo"}]}` {
		t.Fatalf("unexpected found json: %s", found)
	}

	none, _ := json.Marshal(models.PathResult{Outcome: models.PathNone})
	if string(none) != `{"ok":false,"reason":"no_path"}` {
		t.Fatalf("unexpected no_path json: %s", none)
	}

	long, _ := json.Marshal(models.PathResult{Outcome: models.PathTooLong, Len: 7})
	if string(long) != `{"ok":false,"reason":"too_long","len":7}` {
		t.Fatalf("unexpected too_long json: %s", long)
	}
}

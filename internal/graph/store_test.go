package graph

import (
	"reflect"
	"testing"

	"attackgraph/pkg/models"
)

func sampleBatch() models.Batch {
	return models.Batch{
		Nodes: []models.Node{
			{ID: "HOST:10.0.0.5", Type: models.NodeHost, Attrs: map[string]interface{}{"ip": "10.0.0.5"}},
			{ID: "SERVICE:10.0.0.5:445", Type: models.NodeService, Attrs: map[string]interface{}{"proto": "tcp", "name": "microsoft-ds"}},
		},
		Edges: []models.Edge{
			{Src: "HOST:10.0.0.5", Dst: "SERVICE:10.0.0.5:445", Type: "ServiceRunsOn"},
		},
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	once := New()
	once.Merge(sampleBatch())

	twice := New()
	twice.Merge(sampleBatch())
	twice.Merge(sampleBatch())

	if !reflect.DeepEqual(once.Nodes(), twice.Nodes()) {
		t.Fatalf("nodes differ after second merge: %+v vs %+v", once.Nodes(), twice.Nodes())
	}
	if !reflect.DeepEqual(once.Edges(), twice.Edges()) {
		t.Fatalf("edges differ after second merge: %+v vs %+v", once.Edges(), twice.Edges())
	}
}

func TestUpsertEdgeReplacesSamePair(t *testing.T) {
	s := New()
	s.UpsertEdge("A", "B", "X", map[string]interface{}{"w": 1})
	s.UpsertEdge("A", "B", "Y", nil)

	edges := s.Edges()
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Type != "Y" {
		t.Fatalf("expected edge type Y, got %s", edges[0].Type)
	}
	if _, ok := edges[0].Attrs["w"]; ok {
		t.Fatalf("expected attrs of replaced edge to be dropped, got %+v", edges[0].Attrs)
	}
}

func TestUpsertEdgeKeepsReversePairSeparate(t *testing.T) {
	s := New()
	s.UpsertEdge("A", "B", "X", nil)
	s.UpsertEdge("B", "A", "X", nil)
	if _, edges := s.Stats(); edges != 2 {
		t.Fatalf("expected 2 directed edges, got %d", edges)
	}
}

func TestUpsertEdgeCreatesUnknownEndpoints(t *testing.T) {
	s := New()
	s.UpsertEdge("USER:alice", "GROUP:admins", "MemberOf", nil)

	for _, id := range []string{"USER:alice", "GROUP:admins"} {
		n, ok := s.Node(id)
		if !ok {
			t.Fatalf("expected placeholder node %s", id)
		}
		if n.Type != models.NodeUnknown {
			t.Fatalf("expected Unknown type for %s, got %s", id, n.Type)
		}
		if len(n.Attrs) != 0 {
			t.Fatalf("expected empty attrs for %s, got %+v", id, n.Attrs)
		}
	}

	s.UpsertNode("USER:alice", models.NodeUser, map[string]interface{}{"dn": "CN=alice"})
	n, _ := s.Node("USER:alice")
	if n.Type != models.NodeUser {
		t.Fatalf("expected placeholder type to be upgraded, got %s", n.Type)
	}
}

func TestUpsertNodeShallowMerge(t *testing.T) {
	s := New()
	s.UpsertNode("HOST:h", models.NodeHost, map[string]interface{}{"ip": "10.0.0.1", "os": "linux"})
	s.UpsertNode("HOST:h", "", map[string]interface{}{"os": "windows", "is_dc": true})

	n, _ := s.Node("HOST:h")
	if n.Type != models.NodeHost {
		t.Fatalf("empty type must not overwrite, got %s", n.Type)
	}
	want := map[string]interface{}{"ip": "10.0.0.1", "os": "windows", "is_dc": true}
	if !reflect.DeepEqual(n.Attrs, want) {
		t.Fatalf("unexpected attrs: %+v", n.Attrs)
	}
}

func TestNodeReturnsCopy(t *testing.T) {
	s := New()
	s.UpsertNode("HOST:h", models.NodeHost, map[string]interface{}{"ip": "10.0.0.1"})
	n, _ := s.Node("HOST:h")
	n.Attrs["ip"] = "mutated"

	again, _ := s.Node("HOST:h")
	if again.Attrs["ip"] != "10.0.0.1" {
		t.Fatalf("store was mutated through a returned copy")
	}
}

func TestReplaceAndClear(t *testing.T) {
	s := New()
	s.Merge(sampleBatch())
	s.Replace([]models.Node{{ID: "DOMAIN:corp.local", Type: models.NodeDomain}}, nil)

	nodes, edges := s.Stats()
	if nodes != 1 || edges != 0 {
		t.Fatalf("expected replaced graph with 1 node, got nodes=%d edges=%d", nodes, edges)
	}

	s.Clear()
	nodes, edges = s.Stats()
	if nodes != 0 || edges != 0 {
		t.Fatalf("expected empty graph after clear, got nodes=%d edges=%d", nodes, edges)
	}
}

func TestExportDomainControllerIsTeal(t *testing.T) {
	s := New()
	s.UpsertNode("HOST:10.0.0.5", models.NodeHost, map[string]interface{}{"is_dc": true})
	s.UpsertNode("DOMAIN:corp.local", models.NodeDomain, nil)
	s.UpsertEdge("DOMAIN:corp.local", "HOST:10.0.0.5", "HasController", nil)

	exp := s.Export()
	if len(exp.Nodes) != 2 || len(exp.Edges) != 1 {
		t.Fatalf("unexpected export size: %+v", exp)
	}
	var found bool
	for _, n := range exp.Nodes {
		if n.ID == "HOST:10.0.0.5" {
			found = true
			if n.Color != ColorTeal {
				t.Fatalf("expected teal for DC, got %s", n.Color)
			}
		}
	}
	if !found {
		t.Fatalf("DC host missing from export")
	}
	if exp.Edges[0] != (models.ExportEdge{Src: "DOMAIN:corp.local", Dst: "HOST:10.0.0.5", Type: "HasController"}) {
		t.Fatalf("unexpected edge: %+v", exp.Edges[0])
	}
}

package graph

import (
	"sync"

	"attackgraph/pkg/models"
)

type edgeKey struct {
	src string
	dst string
}

type edgeEntry struct {
	typ   string
	attrs map[string]interface{}
}

// Store owns the attack graph. Edges are keyed by the ordered (src, dst) pair,
// so a second edge between the same pair replaces the first.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]*models.Node
	nodeOrder []string
	edges     map[edgeKey]*edgeEntry
	edgeOrder []edgeKey
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.nodes = make(map[string]*models.Node)
	s.nodeOrder = nil
	s.edges = make(map[edgeKey]*edgeEntry)
	s.edgeOrder = nil
}

// UpsertNode creates the node or shallow-merges attrs into the existing one.
// A non-empty typ replaces the stored type.
func (s *Store) UpsertNode(id, typ string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertNode(id, typ, attrs)
}

// UpsertEdge replaces any edge between src and dst. Missing endpoints are
// created as Unknown nodes.
func (s *Store) UpsertEdge(src, dst, typ string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertEdge(src, dst, typ, attrs)
}

// Merge applies a whole batch under a single write lock.
func (s *Store) Merge(batch models.Batch) {
	if batch.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range batch.Nodes {
		s.upsertNode(n.ID, n.Type, n.Attrs)
	}
	for _, e := range batch.Edges {
		s.upsertEdge(e.Src, e.Dst, e.Type, e.Attrs)
	}
}

// Clear drops every node and edge.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Replace swaps the whole graph for the given content in one step.
func (s *Store) Replace(nodes []models.Node, edges []models.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	for _, n := range nodes {
		s.upsertNode(n.ID, n.Type, n.Attrs)
	}
	for _, e := range edges {
		s.upsertEdge(e.Src, e.Dst, e.Type, e.Attrs)
	}
}

func (s *Store) upsertNode(id, typ string, attrs map[string]interface{}) {
	if id == "" {
		return
	}
	n, ok := s.nodes[id]
	if !ok {
		if typ == "" {
			typ = models.NodeUnknown
		}
		n = &models.Node{ID: id, Type: typ, Attrs: make(map[string]interface{}, len(attrs))}
		s.nodes[id] = n
		s.nodeOrder = append(s.nodeOrder, id)
	} else if typ != "" {
		n.Type = typ
	}
	for k, v := range attrs {
		n.Attrs[k] = v
	}
}

func (s *Store) upsertEdge(src, dst, typ string, attrs map[string]interface{}) {
	if src == "" || dst == "" {
		return
	}
	for _, id := range []string{src, dst} {
		if _, ok := s.nodes[id]; !ok {
			s.upsertNode(id, models.NodeUnknown, nil)
		}
	}
	k := edgeKey{src: src, dst: dst}
	if _, ok := s.edges[k]; !ok {
		s.edgeOrder = append(s.edgeOrder, k)
	}
	s.edges[k] = &edgeEntry{typ: typ, attrs: copyAttrs(attrs)}
}

// Node returns a copy of one node.
func (s *Store) Node(id string) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return models.Node{}, false
	}
	return copyNode(n), true
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, copyNode(s.nodes[id]))
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Edge, 0, len(s.edgeOrder))
	for _, k := range s.edgeOrder {
		e := s.edges[k]
		out = append(out, models.Edge{Src: k.src, Dst: k.dst, Type: e.typ, Attrs: copyAttrs(e.attrs)})
	}
	return out
}

// Stats returns node and edge counts.
func (s *Store) Stats() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Export returns every node with its presentation color and every edge.
func (s *Store) Export() models.GraphExport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.GraphExport{
		Nodes: make([]models.ExportNode, 0, len(s.nodeOrder)),
		Edges: make([]models.ExportEdge, 0, len(s.edgeOrder)),
	}
	for _, id := range s.nodeOrder {
		n := copyNode(s.nodes[id])
		out.Nodes = append(out.Nodes, models.ExportNode{
			ID:    n.ID,
			Type:  n.Type,
			Attrs: n.Attrs,
			Color: Colorize(n),
		})
	}
	for _, k := range s.edgeOrder {
		out.Edges = append(out.Edges, models.ExportEdge{Src: k.src, Dst: k.dst, Type: s.edges[k].typ})
	}
	return out
}

func copyNode(n *models.Node) models.Node {
	return models.Node{ID: n.ID, Type: n.Type, Attrs: copyAttrs(n.Attrs)}
}

func copyAttrs(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

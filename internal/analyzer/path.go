package analyzer

import "attackgraph/pkg/models"

// GraphView is the read side of the graph store used by path queries.
type GraphView interface {
	Nodes() []models.Node
	Edges() []models.Edge
}

type hop struct {
	to  string
	typ string
}

// FindPath answers a bounded shortest-path query.
//
// When AllowedEdgeTypes is non-empty the graph is first restricted to edges of
// those types, and nodes that are not an endpoint of a kept edge are dropped.
// The search is an unweighted BFS; among equal-length paths any one may be
// returned.
func FindPath(g GraphView, req models.PathRequest) models.PathResult {
	maxLen := req.MaxLen
	if maxLen < 0 {
		maxLen = models.DefaultMaxPathLen
	}

	present, adj := restrict(g, req.AllowedEdgeTypes)
	if _, ok := present[req.Src]; !ok {
		return models.PathResult{Outcome: models.PathNone}
	}
	if _, ok := present[req.Dst]; !ok {
		return models.PathResult{Outcome: models.PathNone}
	}

	parent := map[string]hop{}
	visited := map[string]struct{}{req.Src: {}}
	queue := []string{req.Src}
	head := 0
	found := req.Src == req.Dst
	for head < len(queue) && !found {
		cur := queue[head]
		head++
		for _, h := range adj[cur] {
			if _, ok := visited[h.to]; ok {
				continue
			}
			visited[h.to] = struct{}{}
			parent[h.to] = hop{to: cur, typ: h.typ}
			if h.to == req.Dst {
				found = true
				break
			}
			queue = append(queue, h.to)
		}
	}
	if !found {
		return models.PathResult{Outcome: models.PathNone}
	}

	nodes := []string{req.Dst}
	types := []string{}
	for cur := req.Dst; cur != req.Src; {
		p := parent[cur]
		types = append(types, p.typ)
		nodes = append(nodes, p.to)
		cur = p.to
	}
	reverse(nodes)
	reverse(types)

	if n := len(nodes) - 1; n > maxLen {
		return models.PathResult{Outcome: models.PathTooLong, Len: n}
	}

	edges := make([]models.ExportEdge, 0, len(types))
	for i, typ := range types {
		edges = append(edges, models.ExportEdge{Src: nodes[i], Dst: nodes[i+1], Type: typ})
	}
	return models.PathResult{Outcome: models.PathFound, Nodes: nodes, Edges: edges}
}

func restrict(g GraphView, allowed []string) (map[string]struct{}, map[string][]hop) {
	present := make(map[string]struct{})
	adj := make(map[string][]hop)

	allow := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allow[t] = struct{}{}
	}
	filtered := len(allow) > 0

	if !filtered {
		for _, n := range g.Nodes() {
			present[n.ID] = struct{}{}
		}
	}
	for _, e := range g.Edges() {
		if filtered {
			if _, ok := allow[e.Type]; !ok {
				continue
			}
		}
		present[e.Src] = struct{}{}
		present[e.Dst] = struct{}{}
		adj[e.Src] = append(adj[e.Src], hop{to: e.Dst, typ: e.Type})
	}
	return present, adj
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

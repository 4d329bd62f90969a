package models

// Node types emitted by the normalizers.
const (
	NodeHost         = "Host"
	NodeComputer     = "Computer"
	NodeService      = "Service"
	NodeUser         = "User"
	NodeGroup        = "Group"
	NodeCA           = "CA"
	NodeCADNS        = "CADNS"
	NodeTemplate     = "Template"
	NodeTemplateFlag = "TemplateFlag"
	NodeVuln         = "Vuln"
	NodeShare        = "Share"
	NodeDomain       = "Domain"
	NodeUnknown      = "Unknown"
)

// Node is a graph vertex with an open attribute map.
type Node struct {
	ID    string                 `json:"id"`
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs"`
}

// Edge is a directed arc. At most one edge exists per ordered (Src, Dst) pair.
type Edge struct {
	Src   string                 `json:"src"`
	Dst   string                 `json:"dst"`
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Batch is the unit merged into the graph store.
type Batch struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty reports whether the batch carries nothing.
func (b Batch) Empty() bool {
	return len(b.Nodes) == 0 && len(b.Edges) == 0
}

// Append adds other's nodes and edges to b.
func (b *Batch) Append(other Batch) {
	b.Nodes = append(b.Nodes, other.Nodes...)
	b.Edges = append(b.Edges, other.Edges...)
}

// AddNode appends a node.
func (b *Batch) AddNode(id, typ string, attrs map[string]interface{}) string {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	b.Nodes = append(b.Nodes, Node{ID: id, Type: typ, Attrs: attrs})
	return id
}

// AddEdge appends an edge.
func (b *Batch) AddEdge(src, dst, typ string) {
	b.Edges = append(b.Edges, Edge{Src: src, Dst: dst, Type: typ})
}

// ExportNode is a node as returned by a graph export.
type ExportNode struct {
	ID    string                 `json:"id"`
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs"`
	Color string                 `json:"color"`
}

// ExportEdge is an edge as returned by a graph export.
type ExportEdge struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Type string `json:"type"`
}

// GraphExport is the read-only view of the whole graph.
type GraphExport struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

package models

import "encoding/json"

// DefaultMaxPathLen bounds path queries whose request omits max_len. A
// negative MaxLen is also read as this default; zero is a real bound.
const DefaultMaxPathLen = 20

// PathRequest asks for a shortest path between two node ids.
type PathRequest struct {
	Src              string   `json:"src"`
	Dst              string   `json:"dst"`
	AllowedEdgeTypes []string `json:"allowed_edge_types,omitempty"`
	MaxLen           int      `json:"max_len"`
}

// PathOutcome classifies a path query result.
type PathOutcome int

const (
	PathFound PathOutcome = iota
	PathNone
	PathTooLong
)

// Reason codes used on the wire.
const (
	ReasonNoPath  = "no_path"
	ReasonTooLong = "too_long"
)

// PathResult is the answer to a PathRequest.
type PathResult struct {
	Outcome PathOutcome
	Nodes   []string
	Edges   []ExportEdge
	// Len is the true edge count of the shortest path when Outcome is PathTooLong.
	Len int
}

type pathResultJSON struct {
	OK     bool         `json:"ok"`
	Reason string       `json:"reason,omitempty"`
	Len    *int         `json:"len,omitempty"`
	Nodes  []string     `json:"nodes,omitempty"`
	Edges  []ExportEdge `json:"edges,omitempty"`
}

// MarshalJSON renders one of the three response shapes.
func (r PathResult) MarshalJSON() ([]byte, error) {
	switch r.Outcome {
	case PathFound:
		nodes := r.Nodes
		if nodes == nil {
			nodes = []string{}
		}
		edges := r.Edges
		if edges == nil {
			edges = []ExportEdge{}
		}
		return json.Marshal(struct {
			OK    bool         `json:"ok"`
			Nodes []string     `json:"nodes"`
			Edges []ExportEdge `json:"edges"`
		}{OK: true, Nodes: nodes, Edges: edges})
	case PathTooLong:
		n := r.Len
		return json.Marshal(pathResultJSON{Reason: ReasonTooLong, Len: &n})
	default:
		return json.Marshal(pathResultJSON{Reason: ReasonNoPath})
	}
}

// UnmarshalJSON accepts any of the three response shapes.
func (r *PathResult) UnmarshalJSON(data []byte) error {
	var raw pathResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PathResult{}
	switch {
	case raw.OK:
		r.Outcome = PathFound
		r.Nodes = raw.Nodes
		r.Edges = raw.Edges
	case raw.Reason == ReasonTooLong:
		r.Outcome = PathTooLong
		if raw.Len != nil {
			r.Len = *raw.Len
		}
	default:
		r.Outcome = PathNone
	}
	return nil
}

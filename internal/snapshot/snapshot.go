// Package snapshot persists the graph as a JSON document and restores it
// all-or-nothing.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed snapshot")

// typeKey is the reserved data key holding the node or edge type.
const typeKey = "type"

// Document is the on-disk snapshot shape.
type Document struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// NodeRecord is one node: its attrs plus the reserved "type" key.
type NodeRecord struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

// EdgeRecord is one edge: its attrs plus the reserved "type" key.
type EdgeRecord struct {
	Src  string                 `json:"src"`
	Dst  string                 `json:"dst"`
	Data map[string]interface{} `json:"data"`
}

// Source is the read side of a graph.
type Source interface {
	Nodes() []models.Node
	Edges() []models.Edge
}

// Target receives a fully decoded graph in one step.
type Target interface {
	Replace(nodes []models.Node, edges []models.Edge)
}

// Encode converts a graph into a snapshot document.
func Encode(g Source) Document {
	nodes := g.Nodes()
	edges := g.Edges()
	doc := Document{
		Nodes: make([]NodeRecord, 0, len(nodes)),
		Edges: make([]EdgeRecord, 0, len(edges)),
	}
	for _, n := range nodes {
		data := make(map[string]interface{}, len(n.Attrs)+1)
		for k, v := range n.Attrs {
			data[k] = v
		}
		data[typeKey] = n.Type
		doc.Nodes = append(doc.Nodes, NodeRecord{ID: n.ID, Data: data})
	}
	for _, e := range edges {
		data := make(map[string]interface{}, len(e.Attrs)+1)
		for k, v := range e.Attrs {
			data[k] = v
		}
		data[typeKey] = e.Type
		doc.Edges = append(doc.Edges, EdgeRecord{Src: e.Src, Dst: e.Dst, Data: data})
	}
	return doc
}

// Marshal renders g as indented snapshot JSON.
func Marshal(g Source) ([]byte, error) {
	data, err := json.MarshalIndent(Encode(g), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates snapshot JSON into staging slices. Nothing
// is returned unless the whole document is valid.
func Unmarshal(data []byte) ([]models.Node, []models.Edge, error) {
	var doc *Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	return Decode(*doc)
}

// Decode validates a document and splits the reserved type key back out.
// Legacy node data of the form {"id","type","attrs":{...}} is also accepted.
func Decode(doc Document) ([]models.Node, []models.Edge, error) {
	nodes := make([]models.Node, 0, len(doc.Nodes))
	for i, rec := range doc.Nodes {
		if rec.ID == "" {
			return nil, nil, fmt.Errorf("%w: node %d has no id", ErrMalformed, i)
		}
		typ, attrs, err := splitData(rec.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: node %s: %v", ErrMalformed, rec.ID, err)
		}
		if legacy, ok := attrs["attrs"].(map[string]interface{}); ok {
			if id, _ := attrs["id"].(string); id == rec.ID {
				attrs = legacy
			}
		}
		nodes = append(nodes, models.Node{ID: rec.ID, Type: typ, Attrs: attrs})
	}

	edges := make([]models.Edge, 0, len(doc.Edges))
	for i, rec := range doc.Edges {
		if rec.Src == "" || rec.Dst == "" {
			return nil, nil, fmt.Errorf("%w: edge %d lacks an endpoint", ErrMalformed, i)
		}
		typ, attrs, err := splitData(rec.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: edge %s->%s: %v", ErrMalformed, rec.Src, rec.Dst, err)
		}
		var edgeAttrs map[string]interface{}
		if len(attrs) > 0 {
			edgeAttrs = attrs
		}
		edges = append(edges, models.Edge{Src: rec.Src, Dst: rec.Dst, Type: typ, Attrs: edgeAttrs})
	}
	return nodes, edges, nil
}

func splitData(data map[string]interface{}) (string, map[string]interface{}, error) {
	attrs := make(map[string]interface{}, len(data))
	var typ string
	for k, v := range data {
		if k == typeKey {
			s, ok := v.(string)
			if !ok && v != nil {
				return "", nil, fmt.Errorf("type must be a string, got %T", v)
			}
			typ = s
			continue
		}
		attrs[k] = v
	}
	return typ, attrs, nil
}

// Save writes g to path atomically via a temporary file in the same
// directory.
func Save(path string, g Source) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads path and replaces the whole of g. g is untouched on any error.
func Load(path string, g Target) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	nodes, edges, err := Unmarshal(data)
	if err != nil {
		return err
	}
	g.Replace(nodes, edges)
	return nil
}

// LoadStore is Load into a fresh store.
func LoadStore(path string) (*graph.Store, error) {
	s := graph.New()
	if err := Load(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

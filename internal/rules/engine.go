// Package rules tags graph nodes with matching detection rules.
package rules

import (
	"sort"

	"attackgraph/pkg/models"
)

// TagsAttr is the node attribute holding matched rule ids.
const TagsAttr = "rule_tags"

// SeverityAttr carries the highest severity among matched rules.
const SeverityAttr = "rule_severity"

// Engine applies tagging rules to nodes.
type Engine interface {
	Apply(node models.Node) []models.RuleTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(node models.Node) []models.RuleTag {
	return nil
}

var severityRank = map[string]int{
	"informational": 0,
	"low":           1,
	"medium":        2,
	"high":          3,
	"critical":      4,
}

// TagBatch annotates every matching node in b and returns how many nodes
// were tagged.
func TagBatch(e Engine, b *models.Batch) int {
	if e == nil || b == nil {
		return 0
	}
	tagged := 0
	for i := range b.Nodes {
		tags := e.Apply(b.Nodes[i])
		if len(tags) == 0 {
			continue
		}
		if b.Nodes[i].Attrs == nil {
			b.Nodes[i].Attrs = map[string]interface{}{}
		}
		ids := make([]string, 0, len(tags))
		top := ""
		for _, t := range tags {
			ids = append(ids, t.ID)
			if top == "" || severityRank[t.Severity] > severityRank[top] {
				top = t.Severity
			}
		}
		sort.Strings(ids)
		b.Nodes[i].Attrs[TagsAttr] = ids
		b.Nodes[i].Attrs[SeverityAttr] = top
		tagged++
	}
	return tagged
}

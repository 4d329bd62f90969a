package normalize

import (
	"strings"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

// Certipy reads a certipy JSON report (in.Path) into CA, template, principal
// and vulnerability nodes.
func Certipy(in Input) models.Batch {
	var b models.Batch
	var data map[string]interface{}
	if !readJSON(in.Path, &data) {
		return b
	}

	for _, ca := range objectList(data["CertificateAuthorities"]) {
		name := getString(ca, "Name", "CN")
		if name == "" {
			name = "UnknownCA"
		}
		caID := b.AddNode(CAID(name), models.NodeCA, copyMap(ca))
		for _, dns := range graph.StringList(ca["DnsHostName"]) {
			if dns == "" {
				continue
			}
			dnsID := b.AddNode(CADNSID(dns), models.NodeCADNS, map[string]interface{}{"dns": dns})
			b.AddEdge(caID, dnsID, "HasDNS")
		}
	}

	templates := make(map[string]string)
	for _, tmpl := range objectList(data["CertificateTemplates"]) {
		name := getString(tmpl, "Name", "CN")
		if name == "" {
			name = "UnknownTemplate"
		}
		attrs := copyMap(tmpl)
		ekus := graph.StringList(tmpl["ExtendedKeyUsage"])
		risky := graph.HasRiskyEKU(ekus)
		if risky {
			attrs["risky"] = true
		}
		tid := b.AddNode(TemplateID(name), models.NodeTemplate, attrs)
		templates[name] = tid

		if ca := getString(tmpl, "CA", "CAName"); ca != "" {
			b.AddEdge(tid, CAID(ca), "OnCA")
		}
		if risky {
			fid := b.AddNode(TemplateFlagID(name), models.NodeTemplateFlag, map[string]interface{}{"ekus": ekus})
			b.AddEdge(tid, fid, "HasFlag")
		}

		perms, _ := tmpl["Permissions"].(map[string]interface{})
		for _, grant := range sortedKeys(perms) {
			principals := perms[grant]
			for _, p := range graph.StringList(principals) {
				pid := principalNode(&b, p)
				b.AddEdge(pid, tid, grant)
			}
		}
	}

	for _, v := range objectList(data["Vulnerabilities"]) {
		esc := getString(v, "Type")
		if esc == "" {
			esc = "ESC?"
		}
		target := getString(v, "TargetTemplate", "Template", "CA")
		if target == "" {
			target = "Unknown"
		}
		vid := b.AddNode(VulnID(esc, target), models.NodeVuln, copyMap(v))
		// Names that are not an indexed template are taken to be a CA.
		if tid, ok := templates[target]; ok {
			b.AddEdge(tid, vid, "HasVuln")
		} else {
			b.AddEdge(CAID(target), vid, "HasVuln")
		}
	}
	return b
}

// principalNode classifies a grant principal: identifiers with "@" are users,
// everything else is a group.
func principalNode(b *models.Batch, principal string) string {
	attrs := map[string]interface{}{"principal": principal}
	if strings.Contains(principal, "@") {
		return b.AddNode(UserID(principal), models.NodeUser, attrs)
	}
	return b.AddNode(GroupID(principal), models.NodeGroup, attrs)
}

// objectList accepts a JSON list of objects or an object keyed by index.
func objectList(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(val) {
			if m, ok := val[k].(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

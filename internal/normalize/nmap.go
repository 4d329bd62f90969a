package normalize

import (
	"os"
	"regexp"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

var (
	dcComponent = regexp.MustCompile(`DC=([^,\s]+)`)
	domainLine  = regexp.MustCompile(`(?m)^\s*Domain(?: name)?:\s*(\S+)`)
)

// dcScripts mark a host as a domain controller.
var dcScripts = map[string]bool{
	"ad_dc_detect": true,
	"ad-dc-detect": true,
	"ldap-rootdse": true,
}

// NmapXML reads the nmap XML report at in.Path.
func NmapXML(in Input) models.Batch {
	var b models.Batch
	if in.Path == "" {
		return b
	}
	raw, err := os.ReadFile(in.Path)
	if err != nil {
		return b
	}
	var run nmap.Run
	if err := nmap.Parse(raw, &run); err != nil {
		return b
	}
	for _, h := range run.Hosts {
		b.Append(nmapHost(h))
	}
	return b
}

func nmapHost(h nmap.Host) models.Batch {
	var b models.Batch
	addr := pickHostAddress(h)
	if addr == "" {
		return b
	}
	hostID := HostID(addr)
	attrs := map[string]interface{}{"ip": addr}
	if len(h.OS.Matches) > 0 && h.OS.Matches[0].Name != "" {
		attrs["os"] = h.OS.Matches[0].Name
	}
	if len(h.Hostnames) > 0 && h.Hostnames[0].Name != "" {
		attrs["hostname"] = h.Hostnames[0].Name
	}

	var services []models.Node
	scripts := append([]nmap.Script{}, h.HostScripts...)
	for _, p := range h.Ports {
		name := p.Service.Name
		if name == "" {
			name = "unknown"
		}
		services = append(services, models.Node{
			ID:    ServiceID(addr, int(p.ID)),
			Type:  models.NodeService,
			Attrs: map[string]interface{}{"proto": p.Protocol, "name": name, "state": p.State.State},
		})
		scripts = append(scripts, p.Scripts...)
	}

	for _, s := range scripts {
		out := strings.TrimSpace(s.Output)
		if dcScripts[s.ID] {
			attrs["is_dc"] = true
			if strings.Contains(out, "DC=") {
				attrs["domain_hint"] = out
			}
		}
		if s.ID == "smb-os-discovery" && strings.Contains(out, "Domain") {
			if _, ok := attrs["domain_hint"]; !ok {
				attrs["domain_hint"] = out
			}
		}
	}

	b.AddNode(hostID, models.NodeHost, attrs)
	for _, svc := range services {
		b.AddNode(svc.ID, svc.Type, svc.Attrs)
		b.AddEdge(hostID, svc.ID, "ServiceRunsOn")
	}

	if hint, ok := attrs["domain_hint"].(string); ok && hint != "" {
		domID := b.AddNode(DomainID(DomainLabel(hint)), models.NodeDomain, map[string]interface{}{"raw": hint})
		if graph.Truthy(attrs["is_dc"]) {
			b.AddEdge(domID, hostID, "HasController")
		} else {
			b.AddEdge(domID, hostID, "MemberHost")
		}
	}
	return b
}

// DomainLabel derives a DNS-style label from a script output hint.
// "DC=corp,DC=local" becomes "corp.local"; "Domain name: corp.local" becomes
// "corp.local"; anything else is returned trimmed.
func DomainLabel(hint string) string {
	if m := dcComponent.FindAllStringSubmatch(hint, -1); len(m) > 0 {
		parts := make([]string, 0, len(m))
		for _, c := range m {
			parts = append(parts, strings.ToLower(c[1]))
		}
		return strings.Join(parts, ".")
	}
	if m := domainLine.FindStringSubmatch(hint); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.TrimSpace(hint)
}

func pickHostAddress(h nmap.Host) string {
	for _, a := range h.Addresses {
		if a.AddrType == "ipv4" {
			return a.Addr
		}
	}
	for _, a := range h.Addresses {
		if a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return ""
}

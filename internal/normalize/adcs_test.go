package normalize

import (
	"testing"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

const certipyReport = `{
	"CertificateAuthorities": [
		{"Name": "corp-CA", "DnsHostName": ["ca.corp.local"]}
	],
	"CertificateTemplates": [
		{
			"Name": "User",
			"CA": "corp-CA",
			"ExtendedKeyUsage": ["Client Authentication", "Secure Email"],
			"Permissions": {
				"Enrollment Rights": ["CORP\\Domain Users", "alice@corp.local"]
			}
		},
		{"Name": "CodeSign", "CAName": "corp-CA", "ExtendedKeyUsage": ["Code Signing"]}
	],
	"Vulnerabilities": [
		{"Type": "ESC1", "TargetTemplate": "User"},
		{"CA": "corp-CA"}
	]
}`

func TestCertipyTemplatesAndVulns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "certipy.json", certipyReport)
	b := Certipy(Input{Path: path})

	if _, ok := findNode(b, "CA:corp-CA"); !ok {
		t.Fatalf("missing CA node")
	}
	if !hasEdge(b, "CA:corp-CA", "CADNS:ca.corp.local", "HasDNS") {
		t.Fatalf("missing HasDNS edge")
	}
	if !hasEdge(b, "TEMPLATE:User", "CA:corp-CA", "OnCA") || !hasEdge(b, "TEMPLATE:CodeSign", "CA:corp-CA", "OnCA") {
		t.Fatalf("missing OnCA edges: %+v", b.Edges)
	}

	user, _ := findNode(b, "TEMPLATE:User")
	if graph.Colorize(user) != graph.ColorOrange {
		t.Fatalf("expected risky template to be orange")
	}
	code, _ := findNode(b, "TEMPLATE:CodeSign")
	if graph.Colorize(code) != graph.ColorBlue {
		t.Fatalf("expected plain template to be blue")
	}
	if !hasEdge(b, "TEMPLATE:User", "FLAG:User:Auth", "HasFlag") {
		t.Fatalf("missing HasFlag edge")
	}
	if hasEdge(b, "TEMPLATE:CodeSign", "FLAG:CodeSign:Auth", "HasFlag") {
		t.Fatalf("plain template must not be flagged")
	}

	group, ok := findNode(b, `GROUP:CORP\Domain Users`)
	if !ok || group.Type != models.NodeGroup {
		t.Fatalf("expected group principal, got %+v", group)
	}
	if _, ok := findNode(b, "USER:alice@corp.local"); !ok {
		t.Fatalf("expected user principal")
	}
	if !hasEdge(b, "USER:alice@corp.local", "TEMPLATE:User", "Enrollment Rights") {
		t.Fatalf("missing grant edge")
	}

	if !hasEdge(b, "TEMPLATE:User", "VULN:ESC1:User", "HasVuln") {
		t.Fatalf("missing template vuln edge")
	}
	if !hasEdge(b, "CA:corp-CA", "VULN:ESC?:corp-CA", "HasVuln") {
		t.Fatalf("expected CA fallback for untyped vuln: %+v", b.Edges)
	}
}

func TestCertipyMissingReport(t *testing.T) {
	if b := Certipy(Input{Path: "/nonexistent/certipy.json"}); !b.Empty() {
		t.Fatalf("expected empty batch")
	}
	path := writeFile(t, t.TempDir(), "bad.json", "{not json")
	if b := Certipy(Input{Path: path}); !b.Empty() {
		t.Fatalf("expected empty batch for malformed report")
	}
}

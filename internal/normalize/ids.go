package normalize

import (
	"fmt"
	"strings"
)

// HostID builds the node id for a host address or directory DN.
func HostID(host string) string {
	return "HOST:" + strings.TrimSpace(host)
}

// ServiceID builds the node id for a service on host:port.
func ServiceID(host string, port int) string {
	return fmt.Sprintf("SERVICE:%s:%d", strings.TrimSpace(host), port)
}

// ShareID builds the node id for an SMB share.
func ShareID(host, share string) string {
	return fmt.Sprintf("SHARE:%s:%s", strings.TrimSpace(host), share)
}

// UserID builds the node id for a user principal.
func UserID(key string) string {
	return "USER:" + key
}

// GroupID builds the node id for a group principal.
func GroupID(key string) string {
	return "GROUP:" + key
}

// DomainID builds the node id for a domain label.
func DomainID(label string) string {
	return "DOMAIN:" + label
}

// CAID builds the node id for a certificate authority.
func CAID(name string) string {
	return "CA:" + name
}

// CADNSID builds the node id for a CA DNS host name.
func CADNSID(dns string) string {
	return "CADNS:" + dns
}

// TemplateID builds the node id for a certificate template.
func TemplateID(name string) string {
	return "TEMPLATE:" + name
}

// TemplateFlagID builds the node id for a template's client-auth flag.
func TemplateFlagID(name string) string {
	return fmt.Sprintf("FLAG:%s:Auth", name)
}

// VulnID builds the node id for a certificate-service vulnerability.
func VulnID(esc, target string) string {
	return fmt.Sprintf("VULN:%s:%s", esc, target)
}

// Package normalize turns raw tool output into node/edge batches.
//
// Every parser is a pure function of its Input and is tolerant: missing files,
// missing fields or unrecognised text produce an empty batch, never an error.
package normalize

import "attackgraph/pkg/models"

// Input is what a parser may read. Which fields matter depends on the source.
type Input struct {
	// Target is the host the tool ran against.
	Target string
	// Stdout is the captured tool output.
	Stdout []byte
	// Dir is the tool's artifact directory.
	Dir string
	// Path is a single structured output file.
	Path string
}

// Func is the normalizer contract.
type Func func(in Input) models.Batch

// Source names.
const (
	SourceLDAPDomainDump = "ldapdomaindump"
	SourceCertipy        = "certipy"
	SourceNetexecSMB     = "netexec-smb"
	SourceSSHBanner      = "ssh-banner"
	SourceFTPBanner      = "ftp-banner"
	SourceMySQLBanner    = "mysql-banner"
	SourceNmapXML        = "nmap-xml"
)

// Registry maps every source name to its parser.
var Registry = map[string]Func{
	SourceLDAPDomainDump: LDAPDomainDump,
	SourceCertipy:        Certipy,
	SourceNetexecSMB:     NetexecSMB,
	SourceSSHBanner:      SSHBanner,
	SourceFTPBanner:      FTPBanner,
	SourceMySQLBanner:    MySQLBanner,
	SourceNmapXML:        NmapXML,
}

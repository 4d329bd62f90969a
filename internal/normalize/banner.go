package normalize

import (
	"strings"

	"attackgraph/pkg/models"
)

type bannerRule struct {
	keyword string
	proto   string
	port    int
}

var (
	sshBanner   = bannerRule{keyword: "SSH", proto: "ssh", port: 22}
	ftpBanner   = bannerRule{keyword: "FTP", proto: "ftp", port: 21}
	mysqlBanner = bannerRule{keyword: "MySQL", proto: "mysql", port: 3306}
)

// SSHBanner records an SSH service on port 22 for every line mentioning SSH.
func SSHBanner(in Input) models.Batch { return scanBanner(in, sshBanner) }

// FTPBanner records an FTP service on port 21.
func FTPBanner(in Input) models.Batch { return scanBanner(in, ftpBanner) }

// MySQLBanner records a MySQL service on port 3306.
func MySQLBanner(in Input) models.Batch { return scanBanner(in, mysqlBanner) }

func scanBanner(in Input, rule bannerRule) models.Batch {
	var b models.Batch
	hostID := HostID(in.Target)
	svcID := ServiceID(in.Target, rule.port)
	for _, line := range strings.Split(string(in.Stdout), "\n") {
		ls := strings.TrimSpace(line)
		if !strings.Contains(ls, rule.keyword) {
			continue
		}
		if b.Empty() {
			b.AddNode(hostID, models.NodeHost, nil)
		}
		// Later lines overwrite the banner on merge; the last match wins.
		b.AddNode(svcID, models.NodeService, map[string]interface{}{
			"proto":  rule.proto,
			"banner": ls,
		})
		b.AddEdge(hostID, svcID, "ServiceRunsOn")
	}
	return b
}

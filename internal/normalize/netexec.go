package normalize

import (
	"regexp"
	"strings"

	"attackgraph/pkg/models"
)

// bannerField matches the "(key:value)" annotations netexec prints after the
// OS string, e.g. "(name:DC01) (domain:corp.local) (signing:True)".
var bannerField = regexp.MustCompile(`\((name|domain|signing|SMBv1):([^)]*)\)`)

// NetexecSMB reads netexec smb stdout for the target host.
func NetexecSMB(in Input) models.Batch {
	var b models.Batch
	if len(in.Stdout) == 0 {
		return b
	}
	hostID := HostID(in.Target)
	attrs := map[string]interface{}{}
	var shares []string

	for _, line := range strings.Split(string(in.Stdout), "\n") {
		ls := strings.TrimSpace(line)
		if strings.Contains(ls, "Windows") && strings.Contains(ls, "Build") {
			attrs["os"] = ls
			for _, m := range bannerField.FindAllStringSubmatch(ls, -1) {
				attrs[bannerKey(m[1])] = m[2]
			}
		}
		if strings.Contains(ls, "Share") && strings.Contains(ls, ":") {
			share := "unknown"
			if parts := strings.Fields(ls); len(parts) >= 2 {
				share = parts[len(parts)-2]
			}
			shares = append(shares, share)
		}
		if strings.Contains(ls, "Pwn3d!") {
			attrs["admin_access"] = true
		}
	}

	if len(attrs) == 0 && len(shares) == 0 {
		return b
	}
	b.AddNode(hostID, models.NodeHost, attrs)
	for _, share := range shares {
		sid := b.AddNode(ShareID(in.Target, share), models.NodeShare, nil)
		b.AddEdge(hostID, sid, "HasShare")
	}
	return b
}

func bannerKey(k string) string {
	switch k {
	case "name":
		return "hostname"
	case "SMBv1":
		return "smbv1"
	default:
		return k
	}
}

package normalize

import (
	"path/filepath"

	"attackgraph/internal/graph"
	"attackgraph/pkg/models"
)

// DontRequirePreauth is the userAccountControl bit for accounts that can be
// AS-REP roasted.
const DontRequirePreauth = 0x00400000

// Files written by ldapdomaindump in its output directory.
const (
	ldapUsersFile     = "domain_users.json"
	ldapGroupsFile    = "domain_groups.json"
	ldapComputersFile = "domain_computers.json"
)

type ldapEntry struct {
	dn       string
	attrs    map[string]interface{}
	memberOf []string
}

// LDAPDomainDump reads users, groups and computers from an ldapdomaindump
// output directory (in.Dir) and links them with MemberOf edges.
func LDAPDomainDump(in Input) models.Batch {
	var b models.Batch
	idx := make(map[string]string)

	users := loadLDAPEntries(filepath.Join(in.Dir, ldapUsersFile))
	groups := loadLDAPEntries(filepath.Join(in.Dir, ldapGroupsFile))
	computers := loadLDAPEntries(filepath.Join(in.Dir, ldapComputersFile))

	for _, u := range users {
		if getInt(u.attrs, "userAccountControl")&DontRequirePreauth != 0 {
			u.attrs["asrep_roastable"] = true
		}
		idx[u.dn] = b.AddNode(UserID(u.dn), models.NodeUser, u.attrs)
	}
	for _, g := range groups {
		idx[g.dn] = b.AddNode(GroupID(g.dn), models.NodeGroup, g.attrs)
	}
	for _, c := range computers {
		idx[c.dn] = b.AddNode(HostID(c.dn), models.NodeComputer, c.attrs)
	}

	for _, set := range [][]ldapEntry{users, groups} {
		for _, e := range set {
			src, ok := idx[e.dn]
			if !ok {
				continue
			}
			for _, m := range e.memberOf {
				if dst, ok := idx[m]; ok {
					b.AddEdge(src, dst, "MemberOf")
				}
			}
		}
	}
	return b
}

// loadLDAPEntries accepts both the flat shape ({"dn": ..., "memberOf": [...]})
// and ldapdomaindump's native shape ({"dn": ..., "attributes": {...}} with
// single-valued attributes wrapped in lists).
func loadLDAPEntries(path string) []ldapEntry {
	var raw []map[string]interface{}
	if !readJSON(path, &raw) {
		return nil
	}
	out := make([]ldapEntry, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		attrs := copyMap(r)
		if nested, ok := r["attributes"].(map[string]interface{}); ok {
			delete(attrs, "attributes")
			for k, v := range nested {
				if list, ok := v.([]interface{}); ok && len(list) == 1 && k != "memberOf" {
					attrs[k] = list[0]
					continue
				}
				attrs[k] = v
			}
			reserveType(attrs)
		}
		dn := getString(attrs, "dn", "distinguishedName")
		if dn == "" {
			continue
		}
		attrs["dn"] = dn
		out = append(out, ldapEntry{
			dn:       dn,
			attrs:    attrs,
			memberOf: graph.StringList(attrs["memberOf"]),
		})
	}
	return out
}

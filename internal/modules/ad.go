package modules

import (
	"path/filepath"
	"time"

	"attackgraph/internal/executor"
	"attackgraph/internal/normalize"
	"attackgraph/pkg/models"
)

// Module names.
const (
	LDAPEnum  = "ldap_enum"
	SMBEnum   = "smb_enum"
	ADCSEnum  = "adcs_enum"
	SSHEnum   = "ssh_enum"
	FTPEnum   = "ftp_enum"
	MySQLEnum = "mysql_enum"
)

// CertipyReport is the file certipy writes into the module directory.
const CertipyReport = "certipy.json"

func newLDAPEnum(env Env) *toolModule {
	return &toolModule{
		name:    LDAPEnum,
		tool:    "ldapdomaindump",
		proto:   "ldap",
		auth:    directoryAuth,
		timeout: 180 * time.Second,
		parse:   normalize.LDAPDomainDump,
		build: func(s models.Session, t models.Target, dir string) command {
			secret := s.Password
			if s.AuthMethod() == models.AuthNTLM {
				secret = lmnt(s.NTLMHash)
			}
			return command{
				argv: []string{"ldapdomaindump", t.Host, "-u", principal(s), "-p", secret, "-o", dir},
				env:  ticketEnv(s),
			}
		},
		input: func(t models.Target, dir string, _ executor.Outcome) normalize.Input {
			return normalize.Input{Target: t.Host, Dir: dir}
		},
		env: env,
	}
}

func newADCSEnum(env Env) *toolModule {
	return &toolModule{
		name:    ADCSEnum,
		tool:    "certipy",
		proto:   "ldap",
		auth:    directoryAuth,
		timeout: 360 * time.Second,
		parse:   normalize.Certipy,
		build: func(s models.Session, t models.Target, dir string) command {
			argv := []string{"certipy", "find", "-u", principal(s)}
			switch s.AuthMethod() {
			case models.AuthNTLM:
				argv = append(argv, "-hashes", lmnt(s.NTLMHash))
			case models.AuthAES:
				argv = append(argv, "-aes", s.AESKey)
			case models.AuthTicket:
				argv = append(argv, "-k", "-no-pass")
			case models.AuthCert:
				argv = append(argv, "-pfx", s.CertPath)
			default:
				argv = append(argv, "-p", s.Password)
			}
			dcIP := s.DCIP
			if dcIP == "" {
				dcIP = t.Host
			}
			argv = append(argv, "-dc-ip", dcIP, "--json", filepath.Join(dir, CertipyReport), "-vulnerable")
			return command{argv: argv, env: ticketEnv(s)}
		},
		input: func(t models.Target, dir string, _ executor.Outcome) normalize.Input {
			return normalize.Input{Target: t.Host, Path: filepath.Join(dir, CertipyReport)}
		},
		extra: func(dir string) []string {
			return []string{filepath.Join(dir, CertipyReport)}
		},
		env: env,
	}
}

func newSMBEnum(env Env) *toolModule {
	return &toolModule{
		name:    SMBEnum,
		tool:    "netexec",
		proto:   "smb",
		auth:    smbAuth,
		timeout: 180 * time.Second,
		parse:   normalize.NetexecSMB,
		build: func(s models.Session, t models.Target, _ string) command {
			auth := netexecAuth(s)
			auth.argv = append([]string{"nxc", "smb", t.Host}, auth.argv...)
			return auth
		},
		input: stdoutInput,
		env:   env,
	}
}

package modules

import (
	"strings"

	"attackgraph/pkg/models"
)

// emptyLM is the LM half used when only an NT hash is known.
const emptyLM = "aad3b435b51404eeaad3b435b51404ee"

var (
	directoryAuth = []models.AuthMethod{models.AuthPassword, models.AuthNTLM, models.AuthAES, models.AuthTicket, models.AuthCert}
	smbAuth       = []models.AuthMethod{models.AuthPassword, models.AuthNTLM, models.AuthAES, models.AuthTicket, models.AuthCert, models.AuthNull}
	sshAuth       = []models.AuthMethod{models.AuthPassword, models.AuthKey, models.AuthNull}
	basicAuth     = []models.AuthMethod{models.AuthPassword, models.AuthNull}
)

// principal renders DOMAIN\user, or just user without a domain.
func principal(s models.Session) string {
	if s.Domain == "" {
		return s.User
	}
	return s.Domain + `\` + s.User
}

// lmnt expands a bare NT hash into the LM:NT pair.
func lmnt(hash string) string {
	if strings.Contains(hash, ":") {
		return hash
	}
	return emptyLM + ":" + hash
}

// ntOnly keeps the NT half of an LM:NT pair.
func ntOnly(hash string) string {
	if i := strings.LastIndexByte(hash, ':'); i >= 0 {
		return hash[i+1:]
	}
	return hash
}

// ticketEnv points Kerberos-aware tools at the session's credential cache.
func ticketEnv(s models.Session) []string {
	if s.TicketPath == "" {
		return nil
	}
	return []string{"KRB5CCNAME=" + s.TicketPath}
}

// netexecAuth is the credential argument tail shared by the netexec
// protocols.
func netexecAuth(s models.Session) command {
	switch s.AuthMethod() {
	case models.AuthPassword:
		return command{argv: []string{"-u", s.User, "-p", s.Password}}
	case models.AuthNTLM:
		return command{argv: []string{"-u", s.User, "-H", ntOnly(s.NTLMHash)}}
	case models.AuthAES:
		return command{argv: []string{"-u", s.User, "--aesKey", s.AESKey}}
	case models.AuthTicket:
		return command{argv: []string{"-k", "--use-kcache"}, env: ticketEnv(s)}
	case models.AuthCert:
		return command{argv: []string{"-u", s.User, "--pfx-cert", s.CertPath}}
	case models.AuthKey:
		return command{argv: []string{"-u", s.User, "--key-file", s.KeyPath}}
	default:
		return command{argv: []string{"-u", "", "-p", ""}}
	}
}

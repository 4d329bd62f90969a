package models

import (
	"errors"
	"fmt"
)

// ErrConflictingCredentials is returned when a session carries more than one
// kind of credential material.
var ErrConflictingCredentials = errors.New("session carries more than one credential kind")

// AuthMethod names the kind of credential a session presents.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthNTLM     AuthMethod = "ntlm"
	AuthAES      AuthMethod = "aes"
	AuthTicket   AuthMethod = "ticket"
	AuthCert     AuthMethod = "cert"
	AuthKey      AuthMethod = "key"
	AuthNull     AuthMethod = "null"
)

// Session is the ephemeral authentication context of a module run. It is never
// stored in the graph.
type Session struct {
	Domain     string `json:"domain,omitempty" yaml:"domain"`
	DCIP       string `json:"dc_ip,omitempty" yaml:"dc_ip"`
	User       string `json:"user,omitempty" yaml:"user"`
	Password   string `json:"password,omitempty" yaml:"password"`
	NTLMHash   string `json:"ntlm_hash,omitempty" yaml:"ntlm_hash"`
	AESKey     string `json:"aes_key,omitempty" yaml:"aes_key"`
	TicketPath string `json:"ticket_path,omitempty" yaml:"ticket_path"`
	CertPath   string `json:"cert_path,omitempty" yaml:"cert_path"`
	KeyPath    string `json:"key_path,omitempty" yaml:"key_path"`
}

// Validate checks that at most one kind of credential material is set.
func (s Session) Validate() error {
	n := 0
	for _, v := range []string{s.Password, s.NTLMHash, s.AESKey, s.TicketPath, s.CertPath, s.KeyPath} {
		if v != "" {
			n++
		}
	}
	if n > 1 {
		return ErrConflictingCredentials
	}
	return nil
}

// AuthMethod reports which credential kind the session presents.
func (s Session) AuthMethod() AuthMethod {
	switch {
	case s.Password != "":
		return AuthPassword
	case s.NTLMHash != "":
		return AuthNTLM
	case s.AESKey != "":
		return AuthAES
	case s.TicketPath != "":
		return AuthTicket
	case s.CertPath != "":
		return AuthCert
	case s.KeyPath != "":
		return AuthKey
	default:
		return AuthNull
	}
}

// String never prints credential material.
func (s Session) String() string {
	return fmt.Sprintf("Session{domain=%s user=%s auth=%s}", s.Domain, s.User, s.AuthMethod())
}

// Target is one host a module runs against.
type Target struct {
	Host  string            `json:"host"`
	Proto string            `json:"proto,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

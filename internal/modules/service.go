package modules

import (
	"time"

	"attackgraph/internal/normalize"
	"attackgraph/pkg/models"
)

const serviceTimeout = 120 * time.Second

// netexecModule builds a banner-grabbing module over one netexec protocol.
func netexecModule(env Env, name, proto string, auth []models.AuthMethod, parse normalize.Func) *toolModule {
	return &toolModule{
		name:    name,
		tool:    "netexec",
		proto:   proto,
		auth:    auth,
		timeout: serviceTimeout,
		parse:   parse,
		build: func(s models.Session, t models.Target, _ string) command {
			c := netexecAuth(s)
			c.argv = append([]string{"nxc", proto, t.Host}, c.argv...)
			return c
		},
		input: stdoutInput,
		env:   env,
	}
}

func newSSHEnum(env Env) *toolModule {
	return netexecModule(env, SSHEnum, "ssh", sshAuth, normalize.SSHBanner)
}

func newFTPEnum(env Env) *toolModule {
	return netexecModule(env, FTPEnum, "ftp", basicAuth, normalize.FTPBanner)
}

func newMySQLEnum(env Env) *toolModule {
	return netexecModule(env, MySQLEnum, "mysql", basicAuth, normalize.MySQLBanner)
}

package modules

import (
	"strings"

	"attackgraph/internal/executor"
	"attackgraph/pkg/models"
)

var authMarkers = []string{
	"STATUS_LOGON_FAILURE",
	"STATUS_ACCOUNT_LOCKED_OUT",
	"STATUS_PASSWORD_EXPIRED",
	"invalidCredentials",
	"KDC_ERR_PREAUTH_FAILED",
	"KDC_ERR_C_PRINCIPAL_UNKNOWN",
	"Authentication failed",
}

var netMarkers = []string{
	"Connection refused",
	"No route to host",
	"Network is unreachable",
	"Name or service not known",
	"Connection reset by peer",
	"NETBIOS connection with the remote host timed out",
}

// Classify refines a failed run into auth_error or net_error by inspecting
// tool output. Exit code zero always stays ok; timeouts and start failures
// stay tool_error.
func Classify(out executor.Outcome) models.Status {
	st := out.Status()
	if st == models.StatusOK || out.TimedOut || out.Err != nil {
		return st
	}
	text := string(out.Stdout) + "\n" + string(out.Stderr)
	for _, m := range authMarkers {
		if strings.Contains(text, m) {
			return models.StatusAuthError
		}
	}
	for _, m := range netMarkers {
		if strings.Contains(text, m) {
			return models.StatusNetError
		}
	}
	return st
}

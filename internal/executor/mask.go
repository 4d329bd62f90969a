package executor

import (
	"strconv"
	"strings"
)

// secretFlags take a credential as their next argument.
var secretFlags = map[string]bool{
	"-p":         true,
	"--password": true,
	"-password":  true,
	"-H":         true,
	"-hashes":    true,
	"--hashes":   true,
	"--aesKey":   true,
	"-aesKey":    true,
	"-aes":       true,
}

const masked = "***"

// MaskArgs renders argv for logging with credential values replaced.
// Both "-p secret" and "--password=secret" forms are masked.
func MaskArgs(argv []string) string {
	out := make([]string, 0, len(argv))
	hideNext := false
	for _, a := range argv {
		if hideNext {
			out = append(out, masked)
			hideNext = false
			continue
		}
		if secretFlags[a] {
			out = append(out, a)
			hideNext = true
			continue
		}
		if i := strings.IndexByte(a, '='); i > 0 && secretFlags[a[:i]] {
			out = append(out, a[:i+1]+masked)
			continue
		}
		out = append(out, quoteArg(a))
	}
	return strings.Join(out, " ")
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsAny(a, " \t\n\"'\\") {
		return strconv.Quote(a)
	}
	return a
}

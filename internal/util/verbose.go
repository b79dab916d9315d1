package util

import "os"

// IsVerbose reports whether verbose request/response logging is enabled
// via the CODEX_NEXUS_VERBOSE environment variable.
func IsVerbose() bool {
	switch os.Getenv("CODEX_NEXUS_VERBOSE") {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

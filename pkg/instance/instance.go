package instance

import (
	"os"
	"strings"
)

// EnvInstanceID overrides the identifier reported by background processes.
const EnvInstanceID = "TABLESIDE_INSTANCE_ID"

const fallbackID = "worker-0"

// ID names the running process in logs and lock ownership: the configured
// override, then the hostname, then a fixed fallback.
func ID() string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return host
	}
	return fallbackID
}

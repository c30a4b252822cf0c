package redact

import (
	"net"
	"net/url"
	"strings"
)

// Mode says whether generator traffic is redacted.
type Mode string

const (
	// ModeLocal sends text as is; the generator runs on this host.
	ModeLocal Mode = "local"
	// ModeCloud tokenizes personal data before it leaves the process.
	ModeCloud Mode = "cloud"
)

// DetectMode treats loopback hosts (localhost, 127.0.0.0/8, ::1) as local.
// Anything else, including a URL that does not parse, is cloud.
func DetectMode(apiURL string) Mode {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil || u.Hostname() == "" {
		return ModeCloud
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ModeLocal
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return ModeLocal
	}
	return ModeCloud
}

// ResolveMode applies an operator override ("always" or "never") before
// falling back to DetectMode.
func ResolveMode(apiURL, override string) Mode {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "always":
		return ModeCloud
	case "never":
		return ModeLocal
	}
	return DetectMode(apiURL)
}

// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// normalizeOrigins builds the origin allow-set from the configured list. A
// bare "*" entry switches on allow-all; malformed entries are logged and
// skipped rather than failing the whole configuration.
func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := lo.ContainsBy(origins, func(o string) bool { return strings.TrimSpace(o) == "*" })

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" || trimmed == "*" {
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return allowed, allowAll
}

// normalizeOrigin reduces an origin to lowercase scheme://host form so that
// header values and configured values compare reliably.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// isOriginAllowed reports whether the request's Origin header matches the
// configured allow-set. Requests without a parseable Origin are always
// rejected, even under a wildcard policy.
func isOriginAllowed(r *http.Request) bool {
	normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}

	configMu.RLock()
	defer configMu.RUnlock()

	if allowAllOrigins {
		return true
	}
	_, exists := allowedOrigins[normalized]
	return exists
}

// checkOrigin is the upgrader hook; it logs each rejection so blocked
// cross-origin attempts are visible in the server log.
func checkOrigin(r *http.Request) bool {
	if isOriginAllowed(r) {
		return true
	}
	log.Printf("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
	return false
}

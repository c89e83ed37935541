package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

// NewCheckOrigin accepts requests without an Origin header (non-browser clients), requests
// whose origin matches the Host they were sent to, and any origin in allowed. In
// development localhost origins are accepted too.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			slog.Warn("WebSocket origin unparsable", "origin", origin, "remote_addr", r.RemoteAddr)
			return false
		}

		if u.Host == r.Host || slices.Contains(allowed, origin) {
			return true
		}

		if isDevelopment && isLocalhost(u.Hostname()) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

package handler

import (
	"net"
	"net/http"
	"strings"
)

// callerIdentity resolves the acting user for write endpoints. Registered
// clients send an X-User-ID header; anonymous clients are treated as guests
// keyed by client IP, which is what the daily quota counts against.
func callerIdentity(r *http.Request) (userID string, guest bool) {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id, false
	}
	return "guest:" + clientIP(r), true
}

// clientIP determines the real client IP from standard proxy headers,
// falling back to the direct remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// queryUser resolves the subject user for read endpoints: the ?user= query
// parameter when present, otherwise the caller's own identity.
func queryUser(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	id, _ := callerIdentity(r)
	return id
}

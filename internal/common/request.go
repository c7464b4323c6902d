package common

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// LoopbackIP is reported when a caller address cannot be determined.
const LoopbackIP = "127.0.0.1"

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return LoopbackIP
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr == "" {
		return LoopbackIP
	}
	return addr
}

// ParseOffsetLimit reads offset/limit query parameters. Offset is clamped
// to zero and limit falls back to defaultLimit and is capped at maxLimit.
func ParseOffsetLimit(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	limit = defaultLimit
	q := r.URL.Query()
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o > 0 {
		offset = o
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

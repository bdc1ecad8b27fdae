package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// rateLimited spends one token for the caller on scope and answers 429 when
// the bucket is empty.
func rateLimited(w http.ResponseWriter, r *http.Request, limiter RateLimiter, scope string, trusted []netip.Prefix) bool {
	if limiter == nil {
		return false
	}
	key := clientIP(r, trusted)
	if scope != "" {
		key = scope + ":" + key
	}
	if limiter.Allow(key) {
		return false
	}
	w.Header().Set("Retry-After", "60")
	respondMessage(r.Context(), w, http.StatusTooManyRequests, "too many requests")
	return true
}

// clientIP returns the peer address. X-Forwarded-For is read only when the
// peer is a trusted proxy, walking right to left past further trusted hops.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(peer); err == nil && host != "" {
		peer = host
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		peer = hop
	}
	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

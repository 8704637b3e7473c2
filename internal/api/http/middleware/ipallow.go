// Package middleware holds the HTTP middleware of the API layer. The only
// access control in the gateway is the admin IP allow-list.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/example/lingoflow/internal/api/http/responders"
	"github.com/example/lingoflow/internal/errcode"
)

// IPAllowlist guards the admin paths with a CIDR allow-list. An empty list
// denies everything.
type IPAllowlist struct {
	prefixes []netip.Prefix
	logger   *slog.Logger
}

// NewIPAllowlist parses the configured CIDR blocks. Malformed blocks log a
// warning and are skipped.
func NewIPAllowlist(cidrs []string, logger *slog.Logger) *IPAllowlist {
	if logger == nil {
		logger = slog.Default()
	}
	var prefixes []netip.Prefix
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			logger.Warn("ignoring malformed CIDR block", "cidr", cidr, "err", err)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}
	return &IPAllowlist{prefixes: prefixes, logger: logger}
}

// Allowed reports whether ip falls inside any configured block.
func (a *IPAllowlist) Allowed(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Guard wraps next, denying requests from outside the allow-list with a
// 403 ACCESS_DENIED envelope.
func (a *IPAllowlist) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !a.Allowed(ip) {
			a.logger.Warn("admin access denied", "ip", ip, "path", r.URL.Path)
			responders.Error(w, errcode.AccessDenied, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GuardFunc is Guard for plain handler functions.
func (a *IPAllowlist) GuardFunc(next http.HandlerFunc) http.Handler {
	return a.Guard(next)
}

// ClientIP resolves the request's client address: the leftmost entry of
// X-Forwarded-For when present, else the transport peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

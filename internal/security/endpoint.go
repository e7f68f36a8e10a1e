// internal/security/endpoint.go
// SSRF defense for outbound webhook URLs. A URL is approved only when its
// scheme is http(s), the host is not a local name, and every address the
// host resolves to is publicly routable.

package security

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

// EndpointValidator approves or rejects candidate outbound URLs
type EndpointValidator struct {
	// lookupIP is swappable in tests
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
	timeout  time.Duration
}

func NewEndpointValidator() *EndpointValidator {
	return &EndpointValidator{
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
		timeout: 5 * time.Second,
	}
}

// Validate returns the URL unchanged when it may be dialed, or "" when it
// must not be. Callers treat "" as a validation error, not an exception.
func (v *EndpointValidator) Validate(ctx context.Context, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return ""
	}

	// Literal IP: no resolution needed
	if ip := net.ParseIP(host); ip != nil {
		if !isPublicIP(ip) {
			return ""
		}
		return rawURL
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ips, err := v.lookupIP(ctx, host)
	if err != nil || len(ips) == 0 {
		return ""
	}

	// Every resolved address must be public. A host with one public and one
	// private record is a classic DNS-rebinding setup.
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return ""
		}
	}

	return rawURL
}

// isPublicIP rejects loopback, private (RFC 1918 and fc00::/7), link-local
// and unspecified addresses.
func isPublicIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if ip.IsMulticast() {
		return false
	}
	return true
}

// internal/security/iphandler.go

package security

import (
	"net"
	"net/http"
	"strings"
)

// IPHandler extracts the requester address from proxy-aware headers and
// formats it for storage according to the form's privacy mode.
type IPHandler struct {
	trustProxy bool
}

func NewIPHandler(trustProxy bool) *IPHandler {
	return &IPHandler{trustProxy: trustProxy}
}

// Extract returns the client IP for a request. Proxy headers are only
// honored when the handler was built with trustProxy, otherwise a spoofed
// X-Forwarded-For would defeat rate limiting.
func (h *IPHandler) Extract(r *http.Request) string {
	if h.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First entry is the originating client
			parts := strings.SplitN(xff, ",", 2)
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
			if net.ParseIP(rip) != nil {
				return rip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}

// FormatForStorage applies the configured privacy mode before the address
// is persisted or handed to integrations. "none" drops the address, and
// "anonymized" zeroes the final IPv4 octet or truncates IPv6 to a /48.
func (h *IPHandler) FormatForStorage(ip, mode string) string {
	switch mode {
	case "none":
		return ""
	case "anonymized":
		return Anonymize(ip)
	default:
		return ip
	}
}

// Anonymize coarsens an IP address so it no longer identifies a single host
func Anonymize(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String()
}

// Package safeurl canonicalizes user-supplied scan targets and rejects
// anything that would let the scanner reach internal infrastructure. It is a
// security boundary: every fetch target must pass Validate before the audit
// executor ever opens a connection.
package safeurl

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

const maxURLLength = 2048

// Resolver abstracts DNS resolution so tests can inject fixed answers.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Validator canonicalizes and checks scan targets.
type Validator struct {
	resolver Resolver
}

// NewValidator builds a validator using the given resolver; nil falls back to
// the system resolver.
func NewValidator(resolver Resolver) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Validator{resolver: resolver}
}

var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"localhost.localdomain":    {},
	"metadata.google.internal": {},
	"metadata":                 {},
	"instance-data":            {},
}

var blockedSuffixes = []string{
	".local",
	".localdomain",
	".internal",
	".home.arpa",
}

// Validate turns raw input into a canonical absolute http(s) URL or returns a
// typed validation error. Hostnames are resolved and every answer is
// classified; a resolution failure or empty answer set is a rejection.
func (v *Validator) Validate(ctx context.Context, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &apperrors.ValidationError{Field: "url", Reason: "url is required"}
	}
	if len(trimmed) > maxURLLength {
		return "", &apperrors.ValidationError{Field: "url", Reason: "url exceeds maximum length"}
	}

	withScheme := trimmed
	if !strings.Contains(trimmed, "://") {
		withScheme = "http://" + trimmed
	}

	parsed, err := url.Parse(withScheme)
	if err != nil {
		return "", &apperrors.ValidationError{Field: "url", Reason: "url is not parseable"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &apperrors.ValidationError{Field: "url", Reason: "only http and https schemes are allowed"}
	}
	if parsed.User != nil {
		return "", &apperrors.ValidationError{Field: "url", Reason: "credentials in url are not allowed"}
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", &apperrors.ValidationError{Field: "url", Reason: "url has no hostname"}
	}
	parsed.Host = rebuildHost(host, parsed.Port())

	if _, blocked := blockedHostnames[host]; blocked {
		return "", &apperrors.ValidationError{Field: "url", Reason: "hostname is blocked"}
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return "", &apperrors.ValidationError{Field: "url", Reason: "hostname suffix is reserved"}
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason := classifyIP(ip); reason != "" {
			return "", &apperrors.ValidationError{Field: "url", Reason: reason}
		}
		return parsed.String(), nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", &apperrors.ValidationError{Field: "url", Reason: "hostname did not resolve"}
	}
	if len(addrs) == 0 {
		return "", &apperrors.ValidationError{Field: "url", Reason: "hostname resolved to no addresses"}
	}
	for _, addr := range addrs {
		if reason := classifyIP(addr.IP); reason != "" {
			return "", &apperrors.ValidationError{Field: "url", Reason: reason}
		}
	}

	return parsed.String(), nil
}

func rebuildHost(host, port string) string {
	if strings.Contains(host, ":") {
		// IPv6 literal, re-bracket.
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

var blockedV4Ranges = []string{
	"10.0.0.0/8",     // RFC1918
	"172.16.0.0/12",  // RFC1918
	"192.168.0.0/16", // RFC1918
	"100.64.0.0/10",  // carrier-grade NAT
	"192.0.0.0/24",   // IETF protocol assignments
	"192.0.2.0/24",   // documentation
	"198.51.100.0/24",
	"203.0.113.0/24",
	"198.18.0.0/15", // benchmarking
	"240.0.0.0/4",   // reserved
}

var blockedV6Ranges = []string{
	"fc00::/7",     // unique local
	"2001:db8::/32", // documentation
}

var (
	blockedV4Nets = mustParseCIDRs(blockedV4Ranges)
	blockedV6Nets = mustParseCIDRs(blockedV6Ranges)
)

func mustParseCIDRs(ranges []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		_, n, err := net.ParseCIDR(r)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// classifyIP returns a rejection reason for addresses the scanner must never
// contact, or "" for a publicly routable address. To4 unwraps IPv4-mapped
// IPv6 forms, so ::ffff:10.0.0.1 is classified as its private IPv4.
func classifyIP(ip net.IP) string {
	if ip.IsUnspecified() {
		return "address is unspecified"
	}
	if ip.IsLoopback() {
		return "address is loopback"
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return "address is link-local"
	}
	if ip.IsMulticast() {
		return "address is multicast"
	}

	if v4 := ip.To4(); v4 != nil {
		for _, n := range blockedV4Nets {
			if n.Contains(v4) {
				return "address is in a private or reserved range"
			}
		}
		return ""
	}

	for _, n := range blockedV6Nets {
		if n.Contains(ip) {
			return "address is in a private or reserved range"
		}
	}
	return ""
}

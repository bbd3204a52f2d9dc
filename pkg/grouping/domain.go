package grouping

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// RootDomain returns the registrable domain of a page url.
// e.g., "http://sub.foo.example.co.uk/path" -> "example.co.uk", true
func RootDomain(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	host := rawURL

	// Without a scheme url.Parse puts the host into the path.
	if !strings.Contains(rawURL, "://") && strings.Contains(rawURL, ".") {
		rawURL = "http://" + rawURL
	}

	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = strings.Split(host, "/")[0]
		host = strings.Split(host, ":")[0]
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	// IPs, localhost and intranet names have no registrable domain
	if !strings.Contains(host, ".") || strings.Contains(host, "*") || isIPv4(host) {
		return "", false
	}

	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// DomainPattern is the criteria string stored on a domain group.
// e.g., "example.co.uk" -> "*.example.co.uk"
func DomainPattern(domain string) string {
	if domain == "" {
		return ""
	}
	return "*." + domain
}

// MatchesDomain reports whether rawURL belongs to a group created from
// pattern.
func MatchesDomain(pattern, rawURL string) bool {
	domain, ok := RootDomain(rawURL)
	return ok && DomainPattern(domain) == pattern
}

func isIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return false
		}
	}
	return true
}

package model

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for identity comparison: scheme, host,
// path and query are kept, the fragment is dropped, scheme and host are
// lowercased, default ports and trailing slashes removed.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		// Without a host only the scheme is case-insensitive.
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		return lowerScheme(s)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && u.Port() == "80" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && u.Port() == "443" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func lowerScheme(s string) string {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return s
	}
	for j := 0; j < i; j++ {
		c := s[j]
		alpha := 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
		if !alpha && (j == 0 || !('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.')) {
			return s
		}
	}
	return strings.ToLower(s[:i]) + s[i:]
}

// SameURL reports whether two URLs denote the same logical page.
func SameURL(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}

// Package urlutil provides URL canonicalization and utility functions.
package urlutil

import (
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParams are query keys stripped during canonicalization. Keys
// matching the utm_ prefix are stripped as well.
var trackingParams = map[string]struct{}{
	"gclid":  {},
	"fbclid": {},
	"_ga":    {},
	"_gl":    {},
	"ver":    {},
}

var multiSlash = regexp.MustCompile(`/+`)

// Canonicalize normalizes a URL into its canonical form. Two URLs refer to
// the same page iff their canonical forms match byte-for-byte:
// scheme and host are lowercased, default ports dropped, path slashes
// collapsed, the fragment stripped, tracking query keys removed, remaining
// query keys sorted, and the trailing slash removed except on the root.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	path := u.Path
	if path == "" {
		path = "/"
	}
	path = multiSlash.ReplaceAllString(path, "/")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	if u.RawQuery != "" {
		u.RawQuery = canonicalQuery(u.Query())
	}

	return u.String(), nil
}

// canonicalQuery drops tracking keys and renders the remainder sorted.
func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if isTrackingParam(k) {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := query[k]
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				parts = append(parts, url.QueryEscape(k))
			} else {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
	}
	return strings.Join(parts, "&")
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// ExtractHost extracts the lowercased host from a URL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

// ExtractPath extracts the path component from a URL.
func ExtractPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// ExtractDomain extracts the registrable domain from a host. IP
// literals are returned unchanged.
func ExtractDomain(host string) string {
	host = stripPort(host)
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// stripPort removes a trailing :port, leaving IPv6 brackets intact.
func stripPort(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		if !strings.Contains(host, "]") || idx > strings.LastIndex(host, "]") {
			host = host[:idx]
		}
	}
	return host
}

// ResolveURL resolves a possibly relative URL against a base URL.
func ResolveURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsSameSite reports whether the URL's host ends with the site domain.
// A host matches when it equals the domain or is a subdomain of it;
// ports are ignored.
func IsSameSite(rawURL, siteDomain string) bool {
	host, err := ExtractHost(rawURL)
	if err != nil || host == "" {
		return false
	}
	siteDomain = strings.ToLower(strings.TrimPrefix(stripPort(siteDomain), "www."))
	host = strings.TrimPrefix(stripPort(host), "www.")
	return host == siteDomain || strings.HasSuffix(host, "."+siteDomain)
}

// IsHTTP reports whether the URL uses an http or https scheme.
func IsHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

package utils

import (
	"net/url"
	"strings"
)

// CookieValue returns the value of cookie name and whether it was present.
//
// A non-empty jar entry wins. Otherwise header is split on ';', each part is
// trimmed and the first part starting with "name=" is used. An empty value
// or a value that fails URL-decoding counts as absent. Spaces around '=' are
// not tolerated, so "session = tok" does not match "session".
func CookieValue(jar map[string]string, header, name string) (string, bool) {
	if v, ok := jar[name]; ok && v != "" {
		return v, true
	}
	if header == "" || name == "" {
		return "", false
	}
	prefix := name + "="
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, prefix) {
			continue
		}
		raw := part[len(prefix):]
		if raw == "" {
			return "", false
		}
		v, err := url.PathUnescape(raw)
		if err != nil {
			return "", false
		}
		return v, true
	}
	return "", false
}

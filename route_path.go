package kick

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Method is an HTTP verb understood by controllers.
type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
)

// Methods lists the supported verbs.
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod accepts a verb in any case.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// HTTP returns the upper-case method name used on the wire.
func (m Method) HTTP() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	case MethodPatch:
		return http.MethodPatch
	case MethodDelete:
		return http.MethodDelete
	}
	return strings.ToUpper(string(m))
}

func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// normalizeBasePath gives a controller base path a leading slash and no
// trailing slash. Empty input becomes "/".
func normalizeBasePath(p string) string {
	segments := splitPath(p)
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// normalizeRoutePath strips leading and trailing slashes from a route path,
// so the controller root is "".
func normalizeRoutePath(p string) string {
	return strings.Join(splitPath(p), "/")
}

// BuildRoutePath joins prefix, controller base path and route path into one
// absolute path. An empty result is "/".
func BuildRoutePath(parts ...string) string {
	var segments []string
	for _, p := range parts {
		segments = append(segments, splitPath(p)...)
	}
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// canonicalPath rewrites {name} parameters to :name so both spellings of
// the same route share a signature.
func canonicalPath(p string) string {
	segments := splitPath(p)
	for i, s := range segments {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			name := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
			if idx := strings.Index(name, ":"); idx >= 0 {
				name = name[:idx]
			}
			segments[i] = ":" + name
		}
	}
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// routeSignature is the case-insensitive identity of a route.
func routeSignature(method Method, fullPath string) string {
	return strings.ToLower(string(method)) + ":" + strings.ToLower(canonicalPath(fullPath))
}

// routeHash is a stable fingerprint of a route signature.
func routeHash(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// chiPattern converts an express-style path to a chi pattern. :name becomes
// {name}; a trailing :name* becomes the chi wildcard, and its name is
// returned so handlers can read the value under it.
func chiPattern(p string) (pattern, wildcard string, err error) {
	segments := splitPath(p)
	for i, s := range segments {
		if !strings.HasPrefix(s, ":") {
			continue
		}
		name := s[1:]
		if strings.HasSuffix(name, "*") {
			if i != len(segments)-1 {
				return "", "", fmt.Errorf("catch-all parameter %s must be the last segment of %s", s, p)
			}
			wildcard = strings.TrimSuffix(name, "*")
			segments[i] = "*"
			continue
		}
		segments[i] = "{" + name + "}"
	}
	if len(segments) == 0 {
		return "/", "", nil
	}
	return "/" + strings.Join(segments, "/"), wildcard, nil
}

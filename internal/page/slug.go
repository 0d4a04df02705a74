package page

import (
	"net/url"
	"strings"
)

// SlugData is the parsed form of an incoming request path.
type SlugData struct {
	PathSegments []string
	// Query is the path segments joined by "/".
	Query  string
	Params map[string]string
}

// IsHome reports whether the slug names the site root.
func (s SlugData) IsHome() bool {
	return s.Query == ""
}

// ParseSlug splits the URL path into decoded segments and copies the first value of each query parameter.
func ParseSlug(u *url.URL) SlugData {
	if u == nil {
		return NewSlugData("", nil)
	}

	params := make(map[string]string)
	for key, values := range u.Query() {
		if key == "" || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}

	return newSlugData(splitPath(u.EscapedPath(), true), params)
}

// NewSlugData builds SlugData from an unescaped path such as "blog/article-1".
func NewSlugData(path string, params map[string]string) SlugData {
	copied := make(map[string]string, len(params))
	for key, value := range params {
		if key == "" {
			continue
		}
		copied[key] = value
	}
	return newSlugData(splitPath(path, false), copied)
}

func newSlugData(segments []string, params map[string]string) SlugData {
	return SlugData{
		PathSegments: segments,
		Query:        strings.Join(segments, "/"),
		Params:       params,
	}
}

func splitPath(path string, escaped bool) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if escaped {
			if decoded, err := url.PathUnescape(part); err == nil {
				part = decoded
			}
		}
		if strings.TrimSpace(part) == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

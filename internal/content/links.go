package content

import (
	"net/url"
	"strings"
)

// PropagateParams appends params to every internal href so navigation keeps the request's query
// context. External links, fragment-only links and documents without params are left as they are.
func PropagateParams(document string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(strings.ToLower(document), "href") {
		return document
	}

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	encoded := values.Encode()

	return rewriteTags(document, func(_ string, raw string) (string, bool) {
		span, ok := findAttr(raw, "href")
		if !ok {
			return "", false
		}

		href := strings.TrimSpace(span.value(raw))
		if href == "" || strings.HasPrefix(href, "#") || !isInternalReference(href) {
			return "", false
		}

		return span.replace(raw, appendQuery(raw[span.start:span.end], href, encoded)), true
	})
}

// appendQuery adds encoded to the raw attribute text, keeping any fragment at the end.
func appendQuery(rawValue, href, encoded string) string {
	rawValue = strings.TrimSpace(rawValue)

	base := href
	if cut := strings.Index(base, "#"); cut >= 0 {
		base = base[:cut]
	}

	separator := "?"
	switch {
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		separator = ""
	case strings.Contains(base, "?"):
		separator = "&"
	}

	if cut := strings.Index(rawValue, "#"); cut >= 0 {
		return rawValue[:cut] + separator + encoded + rawValue[cut:]
	}
	return rawValue + separator + encoded
}

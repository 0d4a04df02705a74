package prompt

import (
	"sort"
	"strings"
)

const (
	parametersHeader    = "URL Parameters:"
	parametersDirective = "Use these parameters to customize the content and presentation of the page."
	linksDirective      = "Write internal links as plain root-relative paths (for example /about) without query strings; the current parameters are appended to every internal link automatically."
)

// FormatParameters renders query parameters as an instruction block appended to the prompt.
// Keys are emitted in sorted order so identical input always yields identical output.
func FormatParameters(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(parametersHeader)
	b.WriteString("\n")
	for _, key := range keys {
		b.WriteString("- ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(params[key])
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(parametersDirective)
	b.WriteString("\n")
	b.WriteString(linksDirective)

	return b.String()
}

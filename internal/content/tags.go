package content

import (
	"strings"

	"golang.org/x/net/html"
)

// attrSpan locates one attribute value inside the raw text of a start tag.
type attrSpan struct {
	start, end int // value bounds, quotes excluded
	quote      byte
}

// rewriteTags streams document through the HTML tokenizer and copies every token's original
// bytes to the output. rewrite is offered each start tag and may return replacement text.
func rewriteTags(document string, rewrite func(name string, raw string) (string, bool)) string {
	var out strings.Builder
	out.Grow(len(document))

	z := html.NewTokenizer(strings.NewReader(document))
	for {
		tt := z.Next()
		// Raw must be copied before TagName, which lower-cases the buffer in place.
		raw := string(z.Raw())

		switch tt {
		case html.ErrorToken:
			out.WriteString(raw)
			return out.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if replaced, ok := rewrite(string(name), raw); ok {
				out.WriteString(replaced)
				continue
			}
		}

		out.WriteString(raw)
	}
}

// findAttr scans a raw start tag for the named attribute using the tokenizer's attribute grammar.
func findAttr(tag, name string) (attrSpan, bool) {
	i := 1
	for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}

	for i < len(tag) {
		for i < len(tag) && (isTagSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			return attrSpan{}, false
		}

		keyStart := i
		i++
		for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != '=' && tag[i] != '>' && tag[i] != '/' {
			i++
		}
		key := tag[keyStart:i]

		for i < len(tag) && isTagSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			if strings.EqualFold(key, name) {
				return attrSpan{}, false
			}
			continue
		}

		i++
		for i < len(tag) && isTagSpace(tag[i]) {
			i++
		}

		span := attrSpan{}
		if i < len(tag) && (tag[i] == '"' || tag[i] == '\'') {
			span.quote = tag[i]
			i++
			span.start = i
			for i < len(tag) && tag[i] != span.quote {
				i++
			}
			span.end = i
			if i < len(tag) {
				i++
			}
		} else {
			span.start = i
			for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != '>' {
				i++
			}
			span.end = i
		}

		if strings.EqualFold(key, name) {
			return span, true
		}
	}

	return attrSpan{}, false
}

// value returns the unescaped attribute value.
func (s attrSpan) value(tag string) string {
	return html.UnescapeString(tag[s.start:s.end])
}

// replace swaps the raw attribute value for replacement, adding quotes to unquoted values.
func (s attrSpan) replace(tag, replacement string) string {
	if s.quote == 0 {
		return tag[:s.start] + `"` + strings.ReplaceAll(replacement, `"`, "&quot;") + `"` + tag[s.end:]
	}
	return tag[:s.start] + replacement + tag[s.end:]
}

func isTagSpace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\f':
		return true
	}
	return false
}

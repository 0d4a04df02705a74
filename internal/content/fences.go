package content

import "strings"

const (
	fence         = "```"
	htmlFence     = "```html"
	htmlFenceSize = len(htmlFence)
)

// StripFences removes a Markdown code fence wrapped around model output. Content without a
// leading or trailing fence is returned unchanged, surrounding whitespace included.
func StripFences(raw string) string {
	out := raw
	for {
		next, changed := stripFenceOnce(out)
		if !changed {
			return out
		}
		out = next
	}
}

func stripFenceOnce(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	changed := false

	switch {
	case len(trimmed) >= htmlFenceSize && strings.EqualFold(trimmed[:htmlFenceSize], htmlFence):
		trimmed = trimmed[htmlFenceSize:]
		changed = true
	case strings.HasPrefix(trimmed, fence):
		trimmed = trimmed[len(fence):]
		changed = true
	}

	if strings.HasSuffix(trimmed, fence) {
		trimmed = trimmed[:len(trimmed)-len(fence)]
		changed = true
	}

	if !changed {
		return raw, false
	}
	return strings.TrimSpace(trimmed), true
}

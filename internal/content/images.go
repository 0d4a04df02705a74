package content

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	defaultPlaceholderBaseURL = "https://picsum.photos"
	minPlaceholderWidth       = 400
	maxPlaceholderWidth       = 1200
	minPlaceholderHeight      = 300
	maxPlaceholderHeight      = 800
	maxPlaceholderSeed        = 10000
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".svg":  {},
	".avif": {},
	".bmp":  {},
	".ico":  {},
}

// IntN returns a non-negative pseudo-random number in [0,n).
type IntN func(n int) int

// ImageReplacer swaps local image references for placeholder images.
type ImageReplacer struct {
	baseURL string
	intN    IntN
}

// NewImageReplacer builds an ImageReplacer. A nil intN uses math/rand/v2, which is safe for concurrent use.
func NewImageReplacer(baseURL string, intN IntN) *ImageReplacer {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultPlaceholderBaseURL
	}
	if intN == nil {
		intN = rand.IntN
	}
	return &ImageReplacer{baseURL: baseURL, intN: intN}
}

// Replace rewrites every src attribute that names a relative or root-relative image file.
func (r *ImageReplacer) Replace(document string) string {
	if !strings.Contains(strings.ToLower(document), "src") {
		return document
	}

	return rewriteTags(document, func(_ string, raw string) (string, bool) {
		span, ok := findAttr(raw, "src")
		if !ok || !IsLocalImage(span.value(raw)) {
			return "", false
		}
		return span.replace(raw, r.placeholderURL()), true
	})
}

func (r *ImageReplacer) placeholderURL() string {
	width := minPlaceholderWidth + r.intN(maxPlaceholderWidth-minPlaceholderWidth+1)
	height := minPlaceholderHeight + r.intN(maxPlaceholderHeight-minPlaceholderHeight+1)
	seed := r.intN(maxPlaceholderSeed)
	return fmt.Sprintf("%s/%d/%d?random=%d", r.baseURL, width, height, seed)
}

// IsLocalImage reports whether ref points at an image file without naming an external host.
func IsLocalImage(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || !isInternalReference(ref) {
		return false
	}

	if cut := strings.IndexAny(ref, "?#"); cut >= 0 {
		ref = ref[:cut]
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(ref))]
	return ok
}

// isInternalReference reports whether ref stays on the current site: no scheme, no host.
func isInternalReference(ref string) bool {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
		return false
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		// Malformed escapes such as "/sale/50%-off" are still site paths.
		return !schemePrefix.MatchString(ref)
	}
	return parsed.Scheme == "" && parsed.Host == ""
}

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

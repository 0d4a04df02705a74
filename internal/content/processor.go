package content

// ProcessorOptions configures the post-processing pipeline.
type ProcessorOptions struct {
	// PlaceholderBaseURL is the image service used for substituted images.
	PlaceholderBaseURL string
	// IntN supplies randomness for placeholder sizes and seeds.
	IntN IntN
}

// Processor turns raw model output into embeddable HTML.
type Processor struct {
	images *ImageReplacer
}

// NewProcessor constructs a Processor. It holds no mutable state and may be shared across goroutines
// as long as the configured IntN is safe for concurrent use.
func NewProcessor(opts ProcessorOptions) *Processor {
	return &Processor{images: NewImageReplacer(opts.PlaceholderBaseURL, opts.IntN)}
}

// Process strips code fences, substitutes local images and propagates params into internal links, in that order.
func (p *Processor) Process(raw string, params map[string]string) string {
	out := StripFences(raw)
	out = p.images.Replace(out)
	return PropagateParams(out, params)
}

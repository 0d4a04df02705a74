package page

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wanderweb/app/internal/content"
	"wanderweb/app/internal/flavor"
	"wanderweb/app/internal/llm"
	"wanderweb/app/internal/prompt"
)

// GenerationContext bundles everything one page generation needs.
type GenerationContext struct {
	SlugData
	FlavorID string
	// Credential overrides the configured CredentialSource when set.
	Credential string
}

// Options wires a Service.
type Options struct {
	Generator   llm.Generator
	Flavors     *flavor.Registry
	Processor   *content.Processor
	Credentials CredentialSource
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
}

// Service runs the generation pipeline: credential, prompt, model call, post-processing.
type Service struct {
	generator   llm.Generator
	flavors     *flavor.Registry
	assembler   *prompt.Assembler
	processor   *content.Processor
	credentials CredentialSource
	logger      *logrus.Logger
	sentryHub   *sentry.Hub
}

// NewService validates the dependencies and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Generator == nil {
		return nil, eris.New("llm generator is required")
	}
	if opts.Flavors == nil {
		return nil, eris.New("flavor registry is required")
	}

	assembler, err := prompt.NewAssembler(opts.Flavors)
	if err != nil {
		return nil, eris.Wrap(err, "building prompt assembler")
	}

	processor := opts.Processor
	if processor == nil {
		processor = content.NewProcessor(content.ProcessorOptions{})
	}

	credentials := opts.Credentials
	if credentials == nil {
		credentials = StaticCredential("")
	}

	return &Service{
		generator:   opts.Generator,
		flavors:     opts.Flavors,
		assembler:   assembler,
		processor:   processor,
		credentials: credentials,
		logger:      opts.Logger,
		sentryHub:   opts.SentryHub,
	}, nil
}

// Flavors exposes the registry the service resolves flavors against.
func (s *Service) Flavors() *flavor.Registry {
	return s.flavors
}

// ResolveFlavor returns the first candidate that names an enabled flavor, or the default flavor id.
func (s *Service) ResolveFlavor(candidates ...string) string {
	for _, candidate := range candidates {
		if id := flavor.Normalize(candidate); id != "" && s.flavors.IsEnabled(id) {
			return id
		}
	}
	return s.flavors.DefaultID()
}

// GeneratePage generates the page for slug using flavorID, which may be empty.
func (s *Service) GeneratePage(ctx context.Context, slug SlugData, flavorID string) llm.Result {
	return s.GeneratePageWithContext(ctx, GenerationContext{SlugData: slug, FlavorID: flavorID})
}

// GeneratePageWithContext runs the pipeline for gc. Generator failures are returned unchanged.
func (s *Service) GeneratePageWithContext(ctx context.Context, gc GenerationContext) llm.Result {
	resolved := s.flavors.Resolve(gc.FlavorID)
	fields := logrus.Fields{"query": gc.Query, "flavor": resolved.ID}

	credential := s.ResolveCredential(ctx, gc.Credential)
	if failure := llm.ValidateCredential(credential); failure != nil {
		s.recordFailure(ctx, fields, failure, credential)
		return llm.Failed(failure)
	}

	start := time.Now()
	promptText := s.assembler.Assemble(gc.Query, prompt.FormatParameters(gc.Params), resolved.ID)
	fields["prompt_ms"] = elapsedMillis(start)

	start = time.Now()
	result := s.generator.Generate(ctx, promptText, credential)
	fields["generation_ms"] = elapsedMillis(start)

	if !result.OK() {
		s.recordFailure(ctx, fields, result.Failure, credential)
		return result
	}

	start = time.Now()
	processed := s.processor.Process(result.Content, gc.Params)
	fields["processing_ms"] = elapsedMillis(start)

	if s.logger != nil {
		s.logger.WithFields(fields).WithField("content_length", len(processed)).Info("page generated")
	}

	return llm.Succeeded(processed)
}

// ResolveCredential returns override when set, otherwise the configured source's credential.
func (s *Service) ResolveCredential(ctx context.Context, override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(s.credentials.Credential(ctx))
}

func (s *Service) recordFailure(ctx context.Context, fields logrus.Fields, failure *llm.Failure, credential string) {
	if failure == nil || failure.CredentialRejected() {
		return
	}

	// Missing or malformed credentials are a visitor setup problem, not a service fault.
	visitorFault := failure.Kind == llm.FailureMissingCredential || failure.Kind == llm.FailureMalformedCredential

	if s.logger != nil {
		entry := s.logger.WithFields(fields).
			WithField("failure", failure.Kind.String()).
			WithField("error", llm.Redact(failure.Error(), credential))
		if visitorFault {
			entry.Info("page generation skipped")
		} else {
			entry.Warn("page generation failed")
		}
	}

	if visitorFault || failure.Kind == llm.FailureRateLimited {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = s.sentryHub
	}
	if hub != nil {
		hub.CaptureException(failure)
	}
}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	geminiOperation    = "gemini.generate_content"
)

// GeminiOptions configures the Gemini-backed generator.
type GeminiOptions struct {
	// BaseURL overrides the public Gemini endpoint, e.g. for a proxy or a test server.
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// GeminiGenerator calls the Gemini generateContent endpoint. The API key travels in the
// x-goog-api-key header and never in the URL.
type GeminiGenerator struct {
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Logger
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator constructs a GeminiGenerator.
func NewGeminiGenerator(opts GeminiOptions) (*GeminiGenerator, error) {
	if opts.Timeout < 0 {
		return nil, eris.New("generation timeout must not be negative")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiGenerator{
		baseURL:    strings.TrimSpace(opts.BaseURL),
		apiVersion: strings.TrimSpace(opts.APIVersion),
		model:      model,
		httpClient: recordingClient(opts.HTTPClient),
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}, nil
}

// Model returns the model identifier used for requests.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Generate sends prompt to Gemini using credential and returns the first candidate's text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt, credential string) (result Result) {
	defer recoverResult(&result)

	if failure := ValidateCredential(credential); failure != nil {
		return Failed(failure)
	}

	fields := logrus.Fields{"operation": geminiOperation, "model": g.model}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	span := sentry.StartSpan(ctx, geminiOperation, sentry.WithDescription(g.model))
	defer span.Finish()

	status := &responseStatus{}
	ctx = withResponseStatus(span.Context(), status)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    g.baseURL,
			APIVersion: g.apiVersion,
		},
	})
	if err != nil {
		failure := transportFailure(eris.Wrap(err, "creating gemini client"))
		span.Status = sentry.SpanStatusInternalError
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	start := time.Now()
	response, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	fields["duration_ms"] = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		failure := classifyGeminiError(err, status.get())
		span.Status = spanStatusFor(failure)
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	text := firstCandidateText(response)
	if strings.TrimSpace(text) == "" {
		failure := emptyGeneration(emptyCandidateDetail(response))
		span.Status = sentry.SpanStatusInternalError
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	span.Status = sentry.SpanStatusOK
	if g.logger != nil {
		g.logger.WithFields(fields).WithField("content_length", len(text)).Debug("generation completed")
	}

	return Succeeded(text)
}

func classifyGeminiError(err error, recordedStatus int) *Failure {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status := recordedStatus
		if status == 0 {
			status = apiErr.Code
		}
		return classifyStatus(status, detailReason(apiErr.Details), err)
	}

	if recordedStatus >= http.StatusBadRequest {
		return classifyStatus(recordedStatus, "", err)
	}

	return transportFailure(err)
}

// detailReason returns the first credential-related reason in the error details, or the first reason present.
func detailReason(details []map[string]any) string {
	first := ""
	for _, detail := range details {
		reason, _ := detail["reason"].(string)
		if reason == "" {
			continue
		}
		if isCredentialReason(reason) {
			return reason
		}
		if first == "" {
			first = reason
		}
	}
	return first
}

func firstCandidateText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}

	candidate := response.Candidates[0]
	if candidate == nil || candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	part := candidate.Content.Parts[0]
	if part == nil {
		return ""
	}
	return part.Text
}

func emptyCandidateDetail(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		if response != nil && response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
			return "prompt blocked: " + string(response.PromptFeedback.BlockReason)
		}
		return "response contained no candidates"
	}
	if candidate := response.Candidates[0]; candidate != nil && candidate.FinishReason != "" {
		return "candidate finished with reason " + string(candidate.FinishReason)
	}
	return "first candidate contained no text"
}

func spanStatusFor(failure *Failure) sentry.SpanStatus {
	switch failure.Kind {
	case FailureCredentialRejected:
		return sentry.SpanStatusUnauthenticated
	case FailureRateLimited:
		return sentry.SpanStatusResourceExhausted
	case FailureTransport:
		if errors.Is(failure, context.DeadlineExceeded) {
			return sentry.SpanStatusDeadlineExceeded
		}
	}
	return sentry.SpanStatusInternalError
}

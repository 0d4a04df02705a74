package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	openRouterBaseURL         = "https://openrouter.ai/api/v1"
	openAIOperation           = "openai.chat_completion"
	defaultOpenAITemperature  = 0.7
	contentFilterFinishReason = "content_filter"
)

// OpenAIOptions configures the generator for OpenAI-compatible chat completion endpoints.
type OpenAIOptions struct {
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *logrus.Logger
}

// OpenAIGenerator sends the assembled prompt as a single user message to a chat completion endpoint.
type OpenAIGenerator struct {
	chat        chatCompletionClient
	logger      *logrus.Logger
	model       string
	temperature float64
	timeout     time.Duration
	baseURL     string
}

type chatCompletionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator constructs an OpenAIGenerator. SDK retries are disabled.
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, eris.New("generator model is required")
	}
	if opts.Timeout < 0 {
		return nil, eris.New("generation timeout must not be negative")
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultOpenAITemperature
	}

	requestOptions := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(opts.HTTPClient))
	}

	apiClient := openai.NewClient(requestOptions...)

	return &OpenAIGenerator{
		chat:        &apiClient.Chat.Completions,
		logger:      opts.Logger,
		model:       model,
		temperature: temperature,
		timeout:     opts.Timeout,
		baseURL:     baseURL,
	}, nil
}

// Model returns the model identifier used for requests.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// BaseURL returns the configured base URL for outbound requests.
func (g *OpenAIGenerator) BaseURL() string {
	return g.baseURL
}

// Generate requests a chat completion for prompt, authenticating with credential.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt, credential string) (result Result) {
	defer recoverResult(&result)

	if failure := ValidateCredential(credential); failure != nil {
		return Failed(failure)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	fields := logrus.Fields{"operation": openAIOperation, "model": g.model}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}

	start := time.Now()
	completion, err := g.chat.New(ctx, params, option.WithAPIKey(credential))
	fields["duration_ms"] = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		failure := classifyOpenAIError(err)
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	if completion == nil || len(completion.Choices) == 0 {
		failure := emptyGeneration("completion returned no choices")
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	choice := completion.Choices[0]
	if strings.EqualFold(strings.TrimSpace(choice.FinishReason), contentFilterFinishReason) {
		failure := emptyGeneration("completion blocked by content filter")
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		failure := emptyGeneration("model refused: " + refusal)
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		failure := emptyGeneration("completion content is empty")
		logFailure(g.logger, fields, failure, credential)
		return Failed(failure)
	}

	if g.logger != nil {
		g.logger.WithFields(fields).WithField("content_length", len(text)).Debug("generation completed")
	}

	return Succeeded(text)
}

func classifyOpenAIError(err error) *Failure {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Code, err)
	}
	return transportFailure(err)
}

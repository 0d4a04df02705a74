package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Generator turns an assembled prompt into raw model output.
// Implementations never return a panic or an error to the caller; every failure is carried in the Result.
type Generator interface {
	Generate(ctx context.Context, prompt, credential string) Result
}

var credentialReasons = map[string]struct{}{
	"API_KEY_INVALID":         {},
	"API_KEY_SERVICE_BLOCKED": {},
	"invalid_api_key":         {},
}

func isCredentialReason(reason string) bool {
	_, ok := credentialReasons[reason]
	return ok
}

// classifyStatus maps a non-success HTTP status and optional structured reason onto a Failure.
func classifyStatus(status int, reason string, cause error) *Failure {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || isCredentialReason(reason):
		return &Failure{Kind: FailureCredentialRejected, Message: CredentialRejectedMessage, Status: status, cause: cause}
	case status == http.StatusTooManyRequests:
		return &Failure{Kind: FailureRateLimited, Message: rateLimitedMessage, Status: status, cause: cause}
	case status > 0:
		return &Failure{
			Kind:    FailureTransport,
			Message: fmt.Sprintf("The generation service returned HTTP status %d.", status),
			Status:  status,
			cause:   cause,
		}
	default:
		return transportFailure(cause)
	}
}

func transportFailure(cause error) *Failure {
	message := transportMessage
	if errors.Is(cause, context.DeadlineExceeded) {
		message = timeoutMessage
	}
	return &Failure{Kind: FailureTransport, Message: message, cause: cause}
}

func emptyGeneration(detail string) *Failure {
	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	return &Failure{Kind: FailureEmptyGeneration, Message: emptyGenerationMessage, cause: cause}
}

// recoverResult converts a panic raised while generating into a transport failure.
func recoverResult(result *Result) {
	if rec := recover(); rec != nil {
		*result = Failed(transportFailure(fmt.Errorf("panic during generation: %v", rec)))
	}
}

func logFailure(logger *logrus.Logger, fields logrus.Fields, failure *Failure, credential string) {
	if logger == nil || failure == nil || failure.CredentialRejected() {
		return
	}

	detail := failure.Message
	if failure.cause != nil {
		detail = failure.cause.Error()
	}

	entry := logger.WithField("error", Redact(detail, credential)).WithField("failure", failure.Kind.String())
	if failure.Status != 0 {
		entry = entry.WithField("status", failure.Status)
	}
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}

	if failure.Kind == FailureRateLimited {
		entry.Warn("generation rate limited")
		return
	}
	entry.Error("generation failed")
}

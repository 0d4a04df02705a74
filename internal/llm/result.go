package llm

import "errors"

// CredentialRejectedMessage is the sentinel error text for a credential the model service refused.
// Callers compare against it by exact value.
const CredentialRejectedMessage = "INVALID_API_KEY"

const (
	missingCredentialMessage   = "No API key is configured. Add your API key in the settings to generate pages."
	malformedCredentialMessage = "The configured API key is not in a valid format. Check the key in the settings."
	rateLimitedMessage         = "The generation service is rate limiting requests. Please wait a moment and try again."
	emptyGenerationMessage     = "The generation service returned no content."
	transportMessage           = "The generation service could not be reached."
	timeoutMessage             = "The generation service did not respond in time."
)

// FailureKind classifies why a generation attempt failed.
type FailureKind int

const (
	FailureMissingCredential FailureKind = iota + 1
	FailureMalformedCredential
	FailureCredentialRejected
	FailureRateLimited
	FailureTransport
	FailureEmptyGeneration
)

func (k FailureKind) String() string {
	switch k {
	case FailureMissingCredential:
		return "missing_credential"
	case FailureMalformedCredential:
		return "malformed_credential"
	case FailureCredentialRejected:
		return "credential_rejected"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransport:
		return "transport_failure"
	case FailureEmptyGeneration:
		return "empty_generation"
	default:
		return "unknown"
	}
}

// Failure is the tagged error carried by an unsuccessful Result.
type Failure struct {
	Kind    FailureKind
	Message string
	// Status is the HTTP status returned by the model service, when one was received.
	Status int
	cause  error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// CredentialRejected reports whether the model service refused the credential.
func (f *Failure) CredentialRejected() bool {
	return f != nil && f.Kind == FailureCredentialRejected
}

// Result is the outcome of a generation call. Exactly one of Content or Failure is set.
type Result struct {
	Content string
	Failure *Failure
}

// Succeeded builds a successful Result.
func Succeeded(content string) Result {
	return Result{Content: content}
}

// Failed builds an unsuccessful Result.
func Failed(failure *Failure) Result {
	return Result{Failure: failure}
}

// OK reports whether the result carries content.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// ErrorMessage returns the human-readable failure text, or the empty string on success.
func (r Result) ErrorMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Message
}

// IsCredentialRejected reports whether err is the credential-rejected sentinel.
func IsCredentialRejected(err error) bool {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.CredentialRejected()
	}
	return err != nil && err.Error() == CredentialRejectedMessage
}

// MissingCredential is returned when no credential could be resolved.
func MissingCredential() *Failure {
	return &Failure{Kind: FailureMissingCredential, Message: missingCredentialMessage}
}

// MalformedCredential is returned when the credential fails the structural check.
func MalformedCredential() *Failure {
	return &Failure{Kind: FailureMalformedCredential, Message: malformedCredentialMessage}
}

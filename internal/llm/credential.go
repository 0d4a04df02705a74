package llm

import (
	"regexp"
	"strings"
)

const redactedCredential = "[REDACTED]"

var credentialPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,128}$`)

// ValidateCredential performs the structural check on an API key. It returns nil when the key is usable.
func ValidateCredential(credential string) *Failure {
	if credential == "" {
		return MissingCredential()
	}
	if !credentialPattern.MatchString(credential) {
		return MalformedCredential()
	}
	return nil
}

// Redact removes every occurrence of credential from text.
func Redact(text, credential string) string {
	if credential == "" {
		return text
	}
	return strings.ReplaceAll(text, credential, redactedCredential)
}

package page

import (
	"context"
	"strings"
)

// CredentialSource supplies the model API key for a request when no explicit override is given.
type CredentialSource interface {
	Credential(ctx context.Context) string
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) string

func (f CredentialFunc) Credential(ctx context.Context) string {
	if f == nil {
		return ""
	}
	return f(ctx)
}

// StaticCredential always returns the same key, e.g. the server-wide fallback.
type StaticCredential string

func (s StaticCredential) Credential(context.Context) string {
	return string(s)
}

// CredentialChain returns the first non-empty credential from its sources, in order.
type CredentialChain []CredentialSource

func (c CredentialChain) Credential(ctx context.Context) string {
	for _, source := range c {
		if source == nil {
			continue
		}
		if credential := strings.TrimSpace(source.Credential(ctx)); credential != "" {
			return credential
		}
	}
	return ""
}

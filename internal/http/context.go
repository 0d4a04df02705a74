package http

import (
	"context"
	"net/url"
)

type contextKey string

const (
	requestIDContextKey  contextKey = "wanderweb/request-id"
	requestURLContextKey contextKey = "wanderweb/request-url"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// RequestURLFromContext returns the URL of the incoming request, or nil outside a request.
func RequestURLFromContext(ctx context.Context) *url.URL {
	if ctx == nil {
		return nil
	}
	if value, ok := ctx.Value(requestURLContextKey).(*url.URL); ok {
		return value
	}
	return nil
}

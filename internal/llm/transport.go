package llm

import (
	"context"
	"net/http"
	"sync/atomic"
)

type responseStatusKey struct{}

// responseStatus captures the HTTP status of the model call so classification does not depend on
// the status being echoed inside the error body.
type responseStatus struct {
	code atomic.Int64
}

func (s *responseStatus) get() int {
	if s == nil {
		return 0
	}
	return int(s.code.Load())
}

func withResponseStatus(ctx context.Context, status *responseStatus) context.Context {
	return context.WithValue(ctx, responseStatusKey{}, status)
}

type statusRecorder struct {
	next http.RoundTripper
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(responseStatusKey{}).(*responseStatus); ok {
			status.code.Store(int64(resp.StatusCode))
		}
	}
	return resp, err
}

func recordingClient(base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		copied := *base
		client = &copied
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport = &statusRecorder{next: next}

	return client
}

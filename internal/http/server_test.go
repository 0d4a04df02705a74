package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wanderweb/app/internal/content"
	"wanderweb/app/internal/db"
	"wanderweb/app/internal/flavor"
	"wanderweb/app/internal/llm"
	"wanderweb/app/internal/page"
	"wanderweb/app/internal/preferences"
)

const testCredential = "server-credential-0123456789"

func TestHomeRouteRendersFlavors(t *testing.T) {
	t.Parallel()

	srv, generator := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"Wanderweb", "Classic", "Retro", `action="/go"`} {
		if !contains(body, want) {
			t.Fatalf("expected body to contain %q, got %q", want, body)
		}
	}
	if contains(body, "Hidden") {
		t.Fatalf("expected disabled flavor to be omitted, got %q", body)
	}
	if !contains(body, "No API key is configured") {
		t.Fatalf("expected missing key notice, got %q", body)
	}
	if generator.callCount() != 0 {
		t.Fatalf("expected home page not to call the generator")
	}
}

func TestPageRouteIssuesVisitorCookie(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/", nil))

	cookie := visitorCookie(rec)
	if cookie == nil {
		t.Fatalf("expected %s cookie to be set", visitorCookieName)
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		t.Fatalf("expected visitor cookie to hold a UUID, got %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected visitor cookie to be HttpOnly")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	rec = serve(srv, req)
	if visitorCookie(rec) != nil {
		t.Fatalf("expected existing visitor cookie to be reused")
	}
}

func TestPageRouteServesProcessedContent(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{result: llm.Succeeded("```html\n<html><body><a href=\"/about\">About</a><img src=\"cat.png\"></body></html>\n```")}
	srv, _ := newTestServer(t, testServerOptions{generator: generator, serverKey: testCredential})

	rec := serve(srv, httptest.NewRequest("GET", "/blog/first-post?theme=dark", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	if strings.HasPrefix(body, "```") {
		t.Fatalf("expected code fences to be stripped, got %q", body)
	}
	if !contains(body, `href="/about?theme=dark"`) {
		t.Fatalf("expected params on internal link, got %q", body)
	}
	if !contains(body, `src="https://picsum.photos/`) {
		t.Fatalf("expected placeholder image, got %q", body)
	}

	if generator.callCount() != 1 {
		t.Fatalf("expected one generator call, got %d", generator.callCount())
	}
	prompt, credential := generator.lastCall()
	if !contains(prompt, "CLASSIC PROMPT") || !contains(prompt, "blog/first-post") {
		t.Fatalf("expected prompt for default flavor and path, got %q", prompt)
	}
	if !contains(prompt, "theme: dark") {
		t.Fatalf("expected parameters in prompt, got %q", prompt)
	}
	if credential != testCredential {
		t.Fatalf("expected server credential, got %q", credential)
	}
}

func TestPageRouteHonoursFlavorParameter(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{result: llm.Succeeded("<p>ok</p>")}
	srv, _ := newTestServer(t, testServerOptions{generator: generator, serverKey: testCredential})

	serve(srv, httptest.NewRequest("GET", "/guestbook?flavor=RETRO", nil))
	prompt, _ := generator.lastCall()
	if !contains(prompt, "RETRO PROMPT") {
		t.Fatalf("expected retro prompt, got %q", prompt)
	}

	serve(srv, httptest.NewRequest("GET", "/guestbook?flavor=hidden", nil))
	prompt, _ = generator.lastCall()
	if !contains(prompt, "CLASSIC PROMPT") {
		t.Fatalf("expected disabled flavor to fall back to default, got %q", prompt)
	}
}

func TestPageRouteMissingCredentialReturns401(t *testing.T) {
	t.Parallel()

	srv, generator := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/anything", nil))

	if rec.Code != 401 {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), preferencesPath) {
		t.Fatalf("expected hint pointing at %s, got %q", preferencesPath, rec.Body.String())
	}
	if got := rec.Header().Get("X-Wanderweb-Error"); got != llm.FailureMissingCredential.String() {
		t.Fatalf("expected error code header, got %q", got)
	}
	if generator.callCount() != 0 {
		t.Fatalf("expected generator not to be called")
	}
}

func TestPageRouteMapsGeneratorFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		failure    *llm.Failure
		status     int
		errorCode  string
		retryAfter string
	}{
		{
			name:      "credential rejected",
			failure:   &llm.Failure{Kind: llm.FailureCredentialRejected, Message: llm.CredentialRejectedMessage, Status: 401},
			status:    401,
			errorCode: llm.CredentialRejectedMessage,
		},
		{
			name:       "rate limited",
			failure:    &llm.Failure{Kind: llm.FailureRateLimited, Message: "slow down", Status: 429},
			status:     429,
			errorCode:  "rate_limited",
			retryAfter: "30",
		},
		{
			name:      "transport",
			failure:   &llm.Failure{Kind: llm.FailureTransport, Message: "unreachable", Status: 500},
			status:    502,
			errorCode: "transport_failure",
		},
		{
			name:      "empty generation",
			failure:   &llm.Failure{Kind: llm.FailureEmptyGeneration, Message: "nothing"},
			status:    502,
			errorCode: "empty_generation",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			generator := &stubGenerator{result: llm.Failed(tc.failure)}
			srv, _ := newTestServer(t, testServerOptions{generator: generator, serverKey: testCredential})

			rec := serve(srv, httptest.NewRequest("GET", "/somewhere", nil))

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
				t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
			}
			if got := rec.Header().Get("X-Wanderweb-Error"); got != tc.errorCode {
				t.Fatalf("expected error code %q, got %q", tc.errorCode, got)
			}
			if got := rec.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Fatalf("expected Retry-After %q, got %q", tc.retryAfter, got)
			}
		})
	}
}

func TestGoRouteRedirects(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	tests := map[string]string{
		"/go?path=blog%2Fpost":           "/blog/post",
		"/go?path=%2Fabout":              "/about",
		"/go":                            "/",
		"/go?path=%2F%2Fevil.test":       "/evil.test",
		"/go?path=%5Cevil.test":          "/evil.test",
		"/go?path=%2F%5Cevil.test":       "/evil.test",
		"/go?path=%5C%5Cevil.test%2Fx":   "/evil.test/x",
		"/go?path=%2F%09%2Fevil.test":    "/evil.test",
		"/go?path=%0A%2F%2Fevil.test":    "/evil.test",
		"/go?path=https%3A%2F%2Fevil.te": "/https://evil.te",
	}
	for target, want := range tests {
		rec := serve(srv, httptest.NewRequest("GET", target, nil))
		if rec.Code != 302 {
			t.Fatalf("%s: expected status 302, got %d", target, rec.Code)
		}
		if location := rec.Header().Get("Location"); location != want {
			t.Fatalf("%s: expected redirect to %q, got %q", target, want, location)
		}
	}
}

func TestRedirectTargetStaysOnSite(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                  "/",
		"  blog/post  ":     "/blog/post",
		`\\evil.test`:       "/evil.test",
		"/\t/evil.test":     "/evil.test",
		"\u0085//evil.test": "/evil.test",
		"docs\\intro":       "/docs/intro",
		"/search?q=a\nb":    "/search?q=ab",
	}
	for input, want := range tests {
		if got := redirectTarget(input); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string `json:"status"`
		Database  string `json:"database"`
		Generator string `json:"generator"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body.Status != "ok" || body.Database != "ok" || body.Generator != "test-model" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestFlavorsAPIListsEnabledFlavors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/api/flavors", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Default string          `json:"default"`
		Flavors []flavorSummary `json:"flavors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding flavors body: %v", err)
	}
	if body.Default != "classic" {
		t.Fatalf("expected default classic, got %q", body.Default)
	}
	if len(body.Flavors) != 2 || body.Flavors[0].ID != "classic" || body.Flavors[1].ID != "retro" {
		t.Fatalf("expected enabled flavors in registration order, got %+v", body.Flavors)
	}
	if !body.Flavors[0].Default || body.Flavors[1].Default {
		t.Fatalf("expected only classic to carry the default flag, got %+v", body.Flavors)
	}
}

func TestPagesAPIGeneratesMarkdown(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{result: llm.Succeeded("<html><head><title>Lamp  Posts</title></head><body><h1>Lamps</h1><p>Bright <a href=\"/more\">more</a></p></body></html>")}
	srv, _ := newTestServer(t, testServerOptions{generator: generator})

	req := httptest.NewRequest("POST", "/api/pages", strings.NewReader(`{"path":"/lamps?size=big","flavor":"retro","format":"markdown"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LLM-API-Key", "header-credential-0123456789")
	rec := serve(srv, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body pageAPIBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding page body: %v", err)
	}
	if body.Title != "Lamp Posts" {
		t.Fatalf("expected extracted title, got %q", body.Title)
	}
	if body.Flavor != "retro" || body.Format != formatMarkdown {
		t.Fatalf("unexpected flavor or format: %+v", body)
	}
	if !contains(body.Content, "# Lamps") || !contains(body.Content, "/more?size=big") {
		t.Fatalf("expected markdown with propagated link, got %q", body.Content)
	}

	prompt, credential := generator.lastCall()
	if credential != "header-credential-0123456789" {
		t.Fatalf("expected header credential override, got %q", credential)
	}
	if !contains(prompt, "RETRO PROMPT") || !contains(prompt, "size: big") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func TestPagesAPIReportsFailures(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{result: llm.Failed(&llm.Failure{Kind: llm.FailureCredentialRejected, Message: llm.CredentialRejectedMessage})}
	srv, _ := newTestServer(t, testServerOptions{generator: generator, serverKey: testCredential})

	req := httptest.NewRequest("POST", "/api/pages", strings.NewReader(`{"path":"blog"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(srv, req)

	if rec.Code != 401 {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}

	var body pageAPIBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding page body: %v", err)
	}
	if body.Error != llm.CredentialRejectedMessage || body.ErrorCode != llm.CredentialRejectedMessage {
		t.Fatalf("expected sentinel error, got %+v", body)
	}
	if body.Content != "" {
		t.Fatalf("expected no content on failure, got %q", body.Content)
	}
}

func TestPreferencesAPIRoundTrip(t *testing.T) {
	t.Parallel()

	generator := &stubGenerator{result: llm.Succeeded("<p>ok</p>")}
	srv, _ := newTestServer(t, testServerOptions{generator: generator})

	rec := serve(srv, httptest.NewRequest("GET", preferencesPath, nil))
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	cookie := visitorCookie(rec)
	if cookie == nil {
		t.Fatalf("expected visitor cookie on first contact")
	}

	req := httptest.NewRequest("PUT", preferencesPath, strings.NewReader(`{"flavor":"retro","api_key":"visitor-credential-0123456789"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec = serve(srv, req)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body preferencesBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding preferences body: %v", err)
	}
	if body.Flavor != "retro" || !body.HasAPIKey {
		t.Fatalf("unexpected preferences %+v", body)
	}
	if contains(rec.Body.String(), "visitor-credential") {
		t.Fatalf("expected api key not to be echoed, got %q", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/gallery", nil)
	req.AddCookie(cookie)
	rec = serve(srv, req)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	prompt, credential := generator.lastCall()
	if !contains(prompt, "RETRO PROMPT") {
		t.Fatalf("expected stored flavor to be used, got %q", prompt)
	}
	if credential != "visitor-credential-0123456789" {
		t.Fatalf("expected stored credential to be used, got %q", credential)
	}
}

func TestPreferencesAPIRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})

	for _, payload := range []string{`{"flavor":"hidden"}`, `{"api_key":"short"}`} {
		req := httptest.NewRequest("PUT", preferencesPath, strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(srv, req)

		if rec.Code != 422 {
			t.Fatalf("%s: expected status 422, got %d", payload, rec.Code)
		}
	}
}

func TestRateLimiterBlocksExcessRequests(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{burst: 1})

	first := serve(srv, httptest.NewRequest("GET", "/", nil))
	if first.Code != 200 {
		t.Fatalf("expected first request to succeed, got %d", first.Code)
	}

	second := serve(srv, httptest.NewRequest("GET", "/", nil))
	if second.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if !contains(second.Body.String(), "wandering a bit too quickly") {
		t.Fatalf("expected rate limit message, got %q", second.Body.String())
	}

	api := serve(srv, httptest.NewRequest("GET", "/api/flavors", nil))
	if api.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("expected api status 429, got %d", api.Code)
	}
	if ct := api.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("expected problem JSON for api routes, got %q", ct)
	}

	health := serve(srv, httptest.NewRequest("GET", healthPath, nil))
	if health.Code != 200 {
		t.Fatalf("expected health check to bypass the limiter, got %d", health.Code)
	}
}

func TestRobotsDisallowsCrawling(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testServerOptions{})
	rec := serve(srv, httptest.NewRequest("GET", "/robots.txt", nil))

	if rec.Code != 200 || !contains(rec.Body.String(), "Disallow: /") {
		t.Fatalf("unexpected robots response %d %q", rec.Code, rec.Body.String())
	}
}

// helper utilities

type testServerOptions struct {
	generator *stubGenerator
	serverKey string
	burst     int
}

func newTestServer(t *testing.T, opts testServerOptions) (*Server, *stubGenerator) {
	t.Helper()

	gormDB, err := db.Open(db.Options{Path: filepath.Join(t.TempDir(), "server.db")})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gormDB) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := preferences.Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	repo, err := preferences.NewRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	store, err := preferences.NewStore(repo, logger)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	registry, err := flavor.NewRegistry([]flavor.Flavor{
		{ID: "classic", Name: "Classic", Description: "Plain pages", BasePrompt: "CLASSIC PROMPT", Examples: []string{"/about"}},
		{ID: "retro", Name: "Retro", Description: "Old pages", BasePrompt: "RETRO PROMPT"},
		{ID: "hidden", Name: "Hidden", Description: "Disabled", BasePrompt: "HIDDEN PROMPT"},
	}, "classic", []string{"classic", "retro"})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	generator := opts.generator
	if generator == nil {
		generator = &stubGenerator{result: llm.Succeeded("<p>stub</p>")}
	}

	pages, err := page.NewService(page.Options{
		Generator:   generator,
		Flavors:     registry,
		Processor:   content.NewProcessor(content.ProcessorOptions{}),
		Credentials: page.CredentialChain{store, page.StaticCredential(opts.serverKey)},
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	burst := opts.burst
	if burst == 0 {
		burst = 100
	}

	srv, err := NewServer(Options{
		Pages:            pages,
		Preferences:      store,
		Database:         gormDB,
		GeneratorModel:   "test-model",
		ServerCredential: opts.serverKey != "",
		Logger:           logger,
		RateLimiter: RateLimiterSettings{
			RequestsPerSecond: 0.001,
			Burst:             burst,
			ClientTTL:         time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv, generator
}

func serve(srv *Server, req *stdhttp.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func visitorCookie(rec *httptest.ResponseRecorder) *stdhttp.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == visitorCookieName {
			return cookie
		}
	}
	return nil
}

func contains(body, substring string) bool {
	return strings.Contains(body, substring)
}

// stubs

type stubGenerator struct {
	mu          sync.Mutex
	result      llm.Result
	prompts     []string
	credentials []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt, credential string) llm.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	s.credentials = append(s.credentials, credential)
	return s.result
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubGenerator) lastCall() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return "", ""
	}
	return s.prompts[len(s.prompts)-1], s.credentials[len(s.credentials)-1]
}

var _ llm.Generator = (*stubGenerator)(nil)

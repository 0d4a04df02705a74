package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"wanderweb/app/internal/db"
	"wanderweb/app/internal/http/templates"
	"wanderweb/app/internal/llm"
	"wanderweb/app/internal/page"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	preferencesPath      = "/api/preferences"
	generationRetryAfter = 30
	errorFallbackMessage = "We couldn't generate this page right now."
	siteTitle            = "Wanderweb"
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	RetryAfter  string `header:"Retry-After"`
	ErrorCode   string `header:"X-Wanderweb-Error"`
	Body        []byte
}

type goInput struct {
	Path string `query:"path"`
}

type healthResponse struct {
	Status int
	Body   struct {
		Status    string `json:"status"`
		Database  string `json:"database"`
		Generator string `json:"generator"`
	}
}

func (s *Server) registerPageRoute() {
	// "GET /" on the standard mux matches every path not claimed by a more specific route.
	huma.Get(s.api, "/", s.pageHandler, htmlOperation(
		"Generate the page for any path",
		stdhttp.StatusUnauthorized,
		stdhttp.StatusTooManyRequests,
		stdhttp.StatusInternalServerError,
		stdhttp.StatusBadGateway,
	))
}

func (s *Server) registerGoRoute() {
	huma.Get(s.api, "/go", s.goHandler, htmlOperation("Redirect to a typed path", stdhttp.StatusFound))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, healthPath, s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) pageHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	slug := page.ParseSlug(RequestURLFromContext(ctx))
	if slug.IsHome() {
		return s.homeResponse(ctx, slug)
	}

	flavorID := s.pages.ResolveFlavor(slug.Params["flavor"], s.preferences.FlavorFor(ctx))
	result := s.pages.GeneratePage(ctx, slug, flavorID)
	if !result.OK() {
		fields := logrus.Fields{"query": slug.Query, "flavor": flavorID}
		return s.failureResponse(ctx, result.Failure, fields)
	}

	resp, err := renderHTML(ctx, stdhttp.StatusOK, templates.RawHTML(result.Content))
	if err != nil {
		s.recordError(ctx, err, "writing generated page", logrus.Fields{"query": slug.Query})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage, "", "")
	}

	return resp, nil
}

func (s *Server) homeResponse(ctx context.Context, slug page.SlugData) (*htmlResponse, error) {
	selected := s.pages.ResolveFlavor(slug.Params["flavor"], s.preferences.FlavorFor(ctx))

	data := templates.HomePageData{
		Title:       siteTitle,
		Tagline:     "Type any path and a language model writes the page that lives there.",
		HasAPIKey:   s.serverCredential || s.preferences.CredentialFor(ctx) != "",
		SettingsURL: preferencesPath,
	}
	for _, f := range s.pages.Flavors().Enabled() {
		data.Flavors = append(data.Flavors, templates.FlavorView{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Examples:    f.Examples,
			Selected:    f.ID == selected,
		})
	}

	resp, err := renderHTML(ctx, stdhttp.StatusOK, templates.HomePage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the start page.", "", "")
	}

	return resp, nil
}

func (s *Server) goHandler(_ context.Context, input *goInput) (*htmlResponse, error) {
	response := newHTMLResponse(stdhttp.StatusFound, nil)
	response.Location = redirectTarget(input.Path)
	return response, nil
}

// redirectTarget turns a typed path into a same-site location. Browsers treat "\" as "/" and
// drop tabs and newlines, so both are normalised before leading slashes are collapsed.
func redirectTarget(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\\':
			return '/'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, raw)

	target := "/" + strings.TrimLeft(strings.TrimSpace(cleaned), "/")
	if parsed, err := url.Parse(target); err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "/"
	}
	return target
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Generator = "ready"
	if s.generatorModel != "" {
		resp.Body.Generator = s.generatorModel
	}

	if err := db.Ping(ctx, s.db); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

// failureStatus maps a generation failure onto the HTTP status returned to the visitor.
func failureStatus(failure *llm.Failure) int {
	if failure == nil {
		return stdhttp.StatusInternalServerError
	}

	switch failure.Kind {
	case llm.FailureMissingCredential, llm.FailureMalformedCredential, llm.FailureCredentialRejected:
		return stdhttp.StatusUnauthorized
	case llm.FailureRateLimited:
		return stdhttp.StatusTooManyRequests
	default:
		return stdhttp.StatusBadGateway
	}
}

func (s *Server) failureResponse(ctx context.Context, failure *llm.Failure, fields logrus.Fields) (*htmlResponse, error) {
	status := failureStatus(failure)
	message := errorFallbackMessage
	hint, hintURL := "", ""

	if failure != nil {
		message = failure.Message
	}

	switch {
	case failure.CredentialRejected():
		message = "The generation service rejected your API key."
		hint, hintURL = "Store a working key with PUT", preferencesPath
	case status == stdhttp.StatusUnauthorized:
		hint, hintURL = "Store your key with PUT", preferencesPath
	}

	if s.logger != nil && failure != nil && !failure.CredentialRejected() {
		s.logger.WithFields(fields).
			WithField("failure", failure.Kind.String()).
			WithField("request_id", RequestIDFromContext(ctx)).
			Info("page request failed")
	}

	resp, err := s.renderErrorResponse(ctx, status, message, hint, hintURL)
	if err != nil || resp == nil {
		return resp, err
	}

	if failure != nil {
		resp.ErrorCode = errorCode(failure)
	}
	if status == stdhttp.StatusTooManyRequests {
		resp.RetryAfter = strconv.Itoa(generationRetryAfter)
	}
	return resp, nil
}

// errorCode is the machine-readable failure name exposed to clients. Credential rejection uses the sentinel.
func errorCode(failure *llm.Failure) string {
	if failure == nil {
		return ""
	}
	if failure.CredentialRejected() {
		return llm.CredentialRejectedMessage
	}
	return failure.Kind.String()
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message, hint, hintURL string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	title := fmt.Sprintf("%s • %s", label, siteTitle)
	template := templates.ErrorPage(templates.ErrorPageData{
		Title:       title,
		StatusLabel: label,
		Message:     message,
		Hint:        hint,
		HintURL:     hintURL,
	})

	body, err := renderComponent(ctx, template)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

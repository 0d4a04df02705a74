package http

import (
	"context"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wanderweb/app/internal/content"
	"wanderweb/app/internal/llm"
	"wanderweb/app/internal/page"
	"wanderweb/app/internal/preferences"
)

const (
	formatHTML     = "html"
	formatMarkdown = "markdown"
	apiTag         = "API"
)

type flavorSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Default     bool     `json:"default"`
}

type flavorsResponse struct {
	Body struct {
		Default string          `json:"default"`
		Flavors []flavorSummary `json:"flavors"`
	}
}

type pageAPIInput struct {
	APIKey string `header:"X-LLM-API-Key" doc:"Overrides the stored and server credentials for this request"`
	Body   struct {
		Path   string            `json:"path" minLength:"1" doc:"Path to generate, optionally with a query string"`
		Params map[string]string `json:"params,omitempty" doc:"Query parameters merged over those in path"`
		Flavor string            `json:"flavor,omitempty" doc:"Flavor id; falls back to the stored preference and then the default"`
		Format string            `json:"format,omitempty" enum:"html,markdown" default:"html"`
	}
}

type pageAPIBody struct {
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Flavor    string `json:"flavor"`
	Format    string `json:"format"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type pageAPIResponse struct {
	Status     int
	RetryAfter string `header:"Retry-After"`
	Body       pageAPIBody
}

type preferencesBody struct {
	Flavor    string `json:"flavor"`
	HasAPIKey bool   `json:"has_api_key"`
}

type preferencesResponse struct {
	Body preferencesBody
}

type preferencesInput struct {
	Body struct {
		Flavor *string `json:"flavor,omitempty" doc:"Enabled flavor id, or the empty string to clear"`
		APIKey *string `json:"api_key,omitempty" doc:"Model service API key, or the empty string to clear"`
	}
}

func (s *Server) registerFlavorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-flavors",
		Method:      stdhttp.MethodGet,
		Path:        "/api/flavors",
		Summary:     "List enabled flavors",
		Tags:        []string{apiTag},
	}, s.listFlavorsHandler)
}

func (s *Server) registerPageAPIRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generate-page",
		Method:      stdhttp.MethodPost,
		Path:        "/api/pages",
		Summary:     "Generate a page and return it as JSON",
		Tags:        []string{apiTag},
	}, s.generatePageHandler)
}

func (s *Server) registerPreferenceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-preferences",
		Method:      stdhttp.MethodGet,
		Path:        preferencesPath,
		Summary:     "Read the visitor's preferences",
		Tags:        []string{apiTag},
	}, s.getPreferencesHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-preferences",
		Method:      stdhttp.MethodPut,
		Path:        preferencesPath,
		Summary:     "Update the visitor's flavor or API key",
		Tags:        []string{apiTag},
	}, s.updatePreferencesHandler)
}

func (s *Server) listFlavorsHandler(_ context.Context, _ *struct{}) (*flavorsResponse, error) {
	registry := s.pages.Flavors()
	resp := &flavorsResponse{}
	resp.Body.Default = registry.DefaultID()
	resp.Body.Flavors = []flavorSummary{}

	for _, f := range registry.Enabled() {
		resp.Body.Flavors = append(resp.Body.Flavors, flavorSummary{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Examples:    f.Examples,
			Default:     f.ID == registry.DefaultID(),
		})
	}

	return resp, nil
}

func (s *Server) generatePageHandler(ctx context.Context, input *pageAPIInput) (*pageAPIResponse, error) {
	slug, err := slugFromAPIPath(input.Body.Path, input.Body.Params)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("path is not a valid URL path", err)
	}

	format := strings.ToLower(strings.TrimSpace(input.Body.Format))
	if format == "" {
		format = formatHTML
	}

	flavorID := s.pages.ResolveFlavor(input.Body.Flavor, slug.Params["flavor"], s.preferences.FlavorFor(ctx))
	result := s.pages.GeneratePageWithContext(ctx, page.GenerationContext{
		SlugData:   slug,
		FlavorID:   flavorID,
		Credential: input.APIKey,
	})

	resp := &pageAPIResponse{
		Status: stdhttp.StatusOK,
		Body:   pageAPIBody{Flavor: flavorID, Format: format},
	}

	if !result.OK() {
		resp.Status = failureStatus(result.Failure)
		resp.Body.Error = result.ErrorMessage()
		resp.Body.ErrorCode = errorCode(result.Failure)
		if resp.Status == stdhttp.StatusTooManyRequests {
			resp.RetryAfter = strconv.Itoa(generationRetryAfter)
		}
		return resp, nil
	}

	resp.Body.Title = content.ExtractTitle(result.Content)
	resp.Body.Content = result.Content

	if format == formatMarkdown {
		markdown, convErr := content.ToMarkdown(result.Content)
		if convErr != nil {
			s.recordError(ctx, convErr, "converting page to markdown", logrus.Fields{"query": slug.Query})
			return nil, huma.Error500InternalServerError("converting page to markdown failed")
		}
		resp.Body.Content = markdown
	}

	return resp, nil
}

func (s *Server) getPreferencesHandler(ctx context.Context, _ *struct{}) (*preferencesResponse, error) {
	preference, err := s.preferences.Current(ctx)
	if err != nil {
		s.recordError(ctx, err, "loading preferences", nil)
		return nil, huma.Error500InternalServerError("loading preferences failed")
	}

	return &preferencesResponse{Body: preferencesBody{
		Flavor:    s.pages.ResolveFlavor(preference.FlavorID),
		HasAPIKey: preference.HasAPIKey(),
	}}, nil
}

func (s *Server) updatePreferencesHandler(ctx context.Context, input *preferencesInput) (*preferencesResponse, error) {
	var details []error

	if input.Body.Flavor != nil {
		id := strings.TrimSpace(*input.Body.Flavor)
		if id != "" && !s.pages.Flavors().IsEnabled(id) {
			details = append(details, &huma.ErrorDetail{
				Message:  "flavor is not enabled",
				Location: "body.flavor",
				Value:    id,
			})
		}
	}

	if input.Body.APIKey != nil {
		key := strings.TrimSpace(*input.Body.APIKey)
		if key != "" && llm.ValidateCredential(key) != nil {
			details = append(details, &huma.ErrorDetail{
				Message:  "api key is not in a valid format",
				Location: "body.api_key",
			})
		}
	}

	if len(details) > 0 {
		return nil, huma.Error422UnprocessableEntity("invalid preferences", details...)
	}

	preference, err := s.preferences.Apply(ctx, preferencesUpdate(input))
	if err != nil {
		s.recordError(ctx, err, "saving preferences", nil)
		return nil, huma.Error500InternalServerError("saving preferences failed")
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"flavor":      preference.FlavorID,
			"has_api_key": preference.HasAPIKey(),
			"request_id":  RequestIDFromContext(ctx),
		}).Info("preferences updated")
	}

	return &preferencesResponse{Body: preferencesBody{
		Flavor:    s.pages.ResolveFlavor(preference.FlavorID),
		HasAPIKey: preference.HasAPIKey(),
	}}, nil
}

// slugFromAPIPath parses rawPath, which may carry a query string, and overlays params on it.
func slugFromAPIPath(rawPath string, params map[string]string) (page.SlugData, error) {
	trimmed := strings.TrimSpace(rawPath)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return page.SlugData{}, err
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return page.SlugData{}, eris.Errorf("path %q must not name a host", rawPath)
	}

	slug := page.ParseSlug(parsed)
	for key, value := range params {
		if key == "" {
			continue
		}
		slug.Params[key] = value
	}
	return slug, nil
}

func preferencesUpdate(input *preferencesInput) preferences.Update {
	update := preferences.Update{}
	if input.Body.Flavor != nil {
		id := strings.TrimSpace(*input.Body.Flavor)
		update.FlavorID = &id
	}
	if input.Body.APIKey != nil {
		key := strings.TrimSpace(*input.Body.APIKey)
		update.APIKey = &key
	}
	return update
}

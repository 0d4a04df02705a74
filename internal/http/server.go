package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wanderweb/app/internal/page"
	"wanderweb/app/internal/preferences"
)

const (
	apiPrefix  = "/api/"
	healthPath = "/healthz"
)

// Options configures the HTTP server wiring.
type Options struct {
	Pages       *page.Service
	Preferences *preferences.Store
	Database    *gorm.DB
	// GeneratorModel is reported by the health check.
	GeneratorModel string
	// ServerCredential reports whether a server-wide API key backs visitors without one.
	ServerCredential bool
	Logger           *logrus.Logger
	SentryHub        *sentry.Hub
	RateLimiter      RateLimiterSettings
	Version          string
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and templ components.
type Server struct {
	api              huma.API
	mux              *stdhttp.ServeMux
	pages            *page.Service
	preferences      *preferences.Store
	generatorModel   string
	serverCredential bool
	logger           *logrus.Logger
	sentry           *sentry.Hub
	db               *gorm.DB
	rateLimiter      *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Pages == nil {
		return nil, eris.New("page service is required")
	}
	if opts.Preferences == nil {
		return nil, eris.New("preferences store is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Wanderweb", version)
	config.Info.Description = "Renders a freshly generated web page for any path."

	api := humago.New(mux, config)

	srv := &Server{
		api:              api,
		mux:              mux,
		pages:            opts.Pages,
		preferences:      opts.Preferences,
		generatorModel:   opts.GeneratorModel,
		serverCredential: opts.ServerCredential,
		logger:           opts.Logger,
		sentry:           opts.SentryHub,
		db:               opts.Database,
		rateLimiter:      NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.visitorMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /favicon.ico", faviconHandler)
	s.mux.HandleFunc("GET /favicon.svg", faviconHandler)
	s.mux.HandleFunc("GET /robots.txt", robotsHandler)

	s.registerHealthRoute()
	s.registerFlavorRoutes()
	s.registerPageAPIRoute()
	s.registerPreferenceRoutes()
	s.registerGoRoute()
	s.registerPageRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}

package api

import (
	"errors"
	"net/http"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// ServerOptions wires the HTTP server to its collaborators
type ServerOptions struct {
	Repository registration.Repository
	Providers  registration.ProviderLister
	State      *StateSigner

	// RedirectURL builds the OAuth2 callback URL for a registration id
	RedirectURL func(registrationID string) string

	HealthChecks   map[string]HealthCheck
	Metrics        http.Handler
	TracerProvider trace.TracerProvider
	ServiceName    string
}

// Server serves the login entry points and provider diagnostics
type Server struct {
	repository  registration.Repository
	providers   registration.ProviderLister
	state       *StateSigner
	redirectURL func(string) string
	health      *HealthChecker
	router      *gin.Engine
}

// NewServer builds the gin router
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Repository == nil {
		return nil, errors.New("registration repository is required")
	}
	if opts.State == nil {
		return nil, errors.New("state signer is required")
	}
	if opts.RedirectURL == nil {
		return nil, errors.New("redirect url builder is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "oauthreg"
	}

	s := &Server{
		repository:  opts.Repository,
		providers:   opts.Providers,
		state:       opts.State,
		redirectURL: opts.RedirectURL,
		health:      NewHealthChecker(opts.HealthChecks),
	}

	router := gin.New()
	otelOpts := []otelgin.Option{}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	router.Use(
		otelgin.Middleware(opts.ServiceName, otelOpts...),
		slogging.LoggerMiddleware(),
		slogging.Recoverer(),
	)

	router.GET("/healthz", s.HandleHealth)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.GET(registration.AuthorizationPathPrefix+":registrationId", s.HandleAuthorize)

	v1 := router.Group("/api/v1")
	v1.GET("/auth-providers", s.HandleListAuthProviders)
	v1.GET("/auth-providers/:name/registration", s.HandleGetRegistration)

	router.NoRoute(func(c *gin.Context) {
		HandleRequestError(c, NotFoundError("resource not found"))
	})

	s.router = router
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

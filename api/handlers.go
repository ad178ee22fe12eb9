package api

import (
	"log/slog"
	"net/http"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/ericfitz/oauthreg/internal/unicodecheck"
	"github.com/gin-gonic/gin"
)

const redactedSecret = "[REDACTED]"

// resolve looks up a registration and fills well-known provider defaults
func (s *Server) resolve(c *gin.Context, registrationID string) (*registration.ClientRegistration, bool) {
	if err := unicodecheck.ValidateIdentifier(registrationID); err != nil {
		slogging.GetContextLogger(c).WarnCtx("Rejected registration id",
			slog.String("registration_id", unicodecheck.SanitizeForLogging(registrationID)),
			slog.String("error", err.Error()),
		)
		HandleRequestError(c, InvalidIdentifierError(err.Error()))
		return nil, false
	}

	reg, err := s.repository.FindByRegistrationID(c.Request.Context(), registrationID)
	if err != nil {
		slogging.GetContextLogger(c).WarnCtx("Client registration lookup failed",
			slog.String("registration_id", registrationID),
			slog.String("error", err.Error()),
		)
		HandleRequestError(c, registrationRequestError(err))
		return nil, false
	}
	return registration.WithProviderDefaults(reg), true
}

// HandleAuthorize redirects the browser to the provider's authorization endpoint
func (s *Server) HandleAuthorize(c *gin.Context) {
	registrationID := c.Param("registrationId")

	reg, ok := s.resolve(c, registrationID)
	if !ok {
		return
	}
	if reg.AuthorizationURI() == "" || reg.TokenURI() == "" {
		HandleRequestError(c, ProviderMisconfiguredError(
			"provider "+registrationID+" has no authorization or token endpoint"))
		return
	}

	state, err := s.state.Sign(registrationID)
	if err != nil {
		HandleRequestError(c, err)
		return
	}

	target := reg.OAuth2Config(s.redirectURL(registrationID)).AuthCodeURL(state)

	slogging.GetContextLogger(c).InfoCtx("Redirecting to OAuth2 provider",
		slog.String("registration_id", registrationID),
		slog.String("client_id", reg.ClientID()),
	)
	c.Redirect(http.StatusFound, target)
}

// HandleListAuthProviders lists the enabled providers a user can sign in with
func (s *Server) HandleListAuthProviders(c *gin.Context) {
	if s.providers == nil {
		c.JSON(http.StatusOK, []AuthProviderSummary{})
		return
	}

	providers, err := s.providers.ListAuthProviders(c.Request.Context())
	if err != nil {
		HandleRequestError(c, err)
		return
	}

	summaries := make([]AuthProviderSummary, 0, len(providers))
	for i := range providers {
		p := &providers[i]
		if !p.Spec.Enabled {
			continue
		}
		displayName := p.Spec.DisplayName
		if displayName == "" {
			displayName = p.Name
		}
		authURL := p.Spec.AuthenticationURL
		if authURL == "" {
			authURL = p.EntryPoint()
		}
		summaries = append(summaries, AuthProviderSummary{
			Name:             p.Name,
			DisplayName:      displayName,
			Description:      p.Spec.Description,
			AuthorizationURL: authURL,
		})
	}

	c.JSON(http.StatusOK, summaries)
}

// HandleGetRegistration returns the resolved registration with its secret redacted
func (s *Server) HandleGetRegistration(c *gin.Context) {
	reg, ok := s.resolve(c, c.Param("name"))
	if !ok {
		return
	}

	view := RegistrationView{
		RegistrationID:    reg.RegistrationID(),
		ClientID:          reg.ClientID(),
		ClientName:        reg.ClientName(),
		AuthorizationURI:  reg.AuthorizationURI(),
		TokenURI:          reg.TokenURI(),
		UserInfoURI:       reg.UserInfoURI(),
		JWKSetURI:         reg.JWKSetURI(),
		IssuerURI:         reg.IssuerURI(),
		UserNameAttribute: reg.UserNameAttribute(),
		Scopes:            reg.Scopes(),
		RedirectURI:       s.redirectURL(reg.RegistrationID()),
	}
	if reg.ClientSecret() != "" {
		view.ClientSecret = redactedSecret
	}
	if view.Scopes == nil {
		view.Scopes = []string{}
	}

	c.JSON(http.StatusOK, view)
}

// HandleHealth reports component health
func (s *Server) HandleHealth(c *gin.Context) {
	status, response := s.health.Check(c.Request.Context())
	c.JSON(status, response)
}

package registration

import "slices"

// CommonProvider holds the well-known endpoints of a public identity provider
type CommonProvider struct {
	DisplayName       string
	AuthorizationURI  string
	TokenURI          string
	UserInfoURI       string
	JWKSetURI         string
	IssuerURI         string
	UserNameAttribute string
	Scopes            []string
}

var commonProviders = map[string]CommonProvider{
	"github": {
		DisplayName:       "GitHub",
		AuthorizationURI:  "https://github.com/login/oauth/authorize",
		TokenURI:          "https://github.com/login/oauth/access_token",
		UserInfoURI:       "https://api.github.com/user",
		UserNameAttribute: "id",
		Scopes:            []string{"read:user"},
	},
	"google": {
		DisplayName:       "Google",
		AuthorizationURI:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURI:          "https://www.googleapis.com/oauth2/v4/token",
		UserInfoURI:       "https://www.googleapis.com/oauth2/v3/userinfo",
		JWKSetURI:         "https://www.googleapis.com/oauth2/v3/certs",
		IssuerURI:         "https://accounts.google.com",
		UserNameAttribute: "sub",
		Scopes:            []string{"openid", "profile", "email"},
	},
	"microsoft": {
		DisplayName:       "Microsoft",
		AuthorizationURI:  "https://login.microsoftonline.com/consumers/oauth2/v2.0/authorize",
		TokenURI:          "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
		UserInfoURI:       "https://graph.microsoft.com/v1.0/me",
		JWKSetURI:         "https://login.microsoftonline.com/consumers/discovery/v2.0/keys",
		IssuerURI:         "https://login.microsoftonline.com/consumers/v2.0",
		UserNameAttribute: "id",
		Scopes:            []string{"openid", "profile", "email", "User.Read"},
	},
	"facebook": {
		DisplayName:       "Facebook",
		AuthorizationURI:  "https://www.facebook.com/v2.8/dialog/oauth",
		TokenURI:          "https://graph.facebook.com/v2.8/oauth/access_token",
		UserInfoURI:       "https://graph.facebook.com/me?fields=id,name,email",
		UserNameAttribute: "id",
		Scopes:            []string{"public_profile", "email"},
	},
}

// LookupCommonProvider returns the well-known endpoints for id, if known
func LookupCommonProvider(id string) (CommonProvider, bool) {
	p, ok := commonProviders[id]
	if !ok {
		return CommonProvider{}, false
	}
	p.Scopes = slices.Clone(p.Scopes)
	return p, true
}

// CommonProviderIDs returns the ids that have well-known defaults, sorted
func CommonProviderIDs() []string {
	ids := make([]string, 0, len(commonProviders))
	for id := range commonProviders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WithProviderDefaults returns a copy of reg whose empty endpoint fields are
// filled from the well-known provider matching its registration id.
// Fields already set are never overridden. reg is returned unchanged when the
// id has no well-known defaults.
func WithProviderDefaults(reg *ClientRegistration) *ClientRegistration {
	if reg == nil {
		return nil
	}
	common, ok := commonProviders[reg.registrationID]
	if !ok {
		return reg
	}

	out := *reg
	out.scopes = slices.Clone(reg.scopes)
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&out.clientName, common.DisplayName)
	fill(&out.authorizationURI, common.AuthorizationURI)
	fill(&out.tokenURI, common.TokenURI)
	fill(&out.userInfoURI, common.UserInfoURI)
	fill(&out.jwkSetURI, common.JWKSetURI)
	fill(&out.issuerURI, common.IssuerURI)
	fill(&out.userNameAttribute, common.UserNameAttribute)
	if len(out.scopes) == 0 {
		out.scopes = slices.Clone(common.Scopes)
	}
	return &out
}

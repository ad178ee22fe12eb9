package api

// Error is the JSON body of every non-2xx response
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AuthProviderSummary describes a login option for a sign-in page
type AuthProviderSummary struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	Description      string `json:"description,omitempty"`
	AuthorizationURL string `json:"authorization_url"`
}

// RegistrationView is a resolved client registration with the secret redacted
type RegistrationView struct {
	RegistrationID    string   `json:"registration_id"`
	ClientID          string   `json:"client_id"`
	ClientSecret      string   `json:"client_secret,omitempty"`
	ClientName        string   `json:"client_name,omitempty"`
	AuthorizationURI  string   `json:"authorization_uri"`
	TokenURI          string   `json:"token_uri"`
	UserInfoURI       string   `json:"user_info_uri,omitempty"`
	JWKSetURI         string   `json:"jwk_set_uri,omitempty"`
	IssuerURI         string   `json:"issuer_uri,omitempty"`
	UserNameAttribute string   `json:"user_name_attribute,omitempty"`
	Scopes            []string `json:"scopes"`
	RedirectURI       string   `json:"redirect_uri"`
}

// HealthResponse reports per-component health
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

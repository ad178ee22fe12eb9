// Package registration resolves OAuth2 client registrations from auth provider
// definitions and the config maps that hold their credentials.
package registration

import (
	"errors"
	"slices"

	"golang.org/x/oauth2"
)

// AuthorizationPathPrefix is the login entry point prefix for a provider
const AuthorizationPathPrefix = "/oauth2/authorization/"

// AuthProvider is the declarative definition of one OAuth2 identity provider.
// Name doubles as the registration id.
type AuthProvider struct {
	Name string           `json:"name" yaml:"name"`
	Spec AuthProviderSpec `json:"spec" yaml:"spec"`
}

// AuthProviderSpec holds the provider endpoints and where its credentials live.
// Exactly one credential location must be configured: either SettingRef
// together with ConfigMapRef, or ConfigMapKeyRef on its own.
type AuthProviderSpec struct {
	DisplayName        string            `json:"displayName" yaml:"display_name"`
	Description        string            `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled            bool              `json:"enabled" yaml:"enabled"`
	AuthenticationURL  string            `json:"authenticationUrl" yaml:"authentication_url"`
	ClientRegistration ProviderEndpoints `json:"clientRegistration" yaml:"client_registration"`

	SettingRef      *SettingRef      `json:"settingRef,omitempty" yaml:"setting_ref,omitempty"`
	ConfigMapRef    *ConfigMapRef    `json:"configMapRef,omitempty" yaml:"config_map_ref,omitempty"`
	ConfigMapKeyRef *ConfigMapKeyRef `json:"configMapKeyRef,omitempty" yaml:"config_map_key_ref,omitempty"`
}

// ProviderEndpoints are copied verbatim into the resolved registration
type ProviderEndpoints struct {
	AuthorizationURI  string   `json:"authorizationUri" yaml:"authorization_uri"`
	TokenURI          string   `json:"tokenUri" yaml:"token_uri"`
	UserInfoURI       string   `json:"userInfoUri,omitempty" yaml:"user_info_uri,omitempty"`
	JWKSetURI         string   `json:"jwkSetUri,omitempty" yaml:"jwk_set_uri,omitempty"`
	IssuerURI         string   `json:"issuerUri,omitempty" yaml:"issuer_uri,omitempty"`
	Scopes            []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	UserNameAttribute string   `json:"userNameAttribute,omitempty" yaml:"user_name_attribute,omitempty"`
}

// SettingRef points at the setting form and the group whose value holds the credentials
type SettingRef struct {
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group" yaml:"group"`
}

// ConfigMapRef names the config map backing a SettingRef
type ConfigMapRef struct {
	Name string `json:"name" yaml:"name"`
}

// EntryPoint returns the authentication entry-point path for the provider
func (p *AuthProvider) EntryPoint() string {
	if p.Spec.AuthenticationURL != "" {
		return p.Spec.AuthenticationURL
	}
	return AuthorizationPathPrefix + p.Name
}

// ConfigMap is an opaque string-to-string container of provider credentials
type ConfigMap struct {
	Name string            `json:"name" yaml:"name"`
	Data map[string]string `json:"data" yaml:"data"`
}

// Value returns the entry at key
func (c *ConfigMap) Value(key string) (string, bool) {
	if c == nil || c.Data == nil {
		return "", false
	}
	v, ok := c.Data[key]
	return v, ok
}

// SecretRef locates the JSON credential payload of a provider.
// The set of implementations is closed: SettingGroupRef and ConfigMapKeyRef.
type SecretRef interface {
	// ConfigMapName is the config map to fetch
	ConfigMapName() string
	// EntryKey is the config map key holding the JSON payload
	EntryKey() string

	secretRef()
}

// SettingGroupRef is the keyed-map form: the config map holds one JSON
// payload per setting group, and Group selects the entry.
type SettingGroupRef struct {
	SettingName string
	Group       string
	ConfigMap   string
}

// ConfigMapName implements SecretRef
func (r SettingGroupRef) ConfigMapName() string { return r.ConfigMap }

// EntryKey implements SecretRef
func (r SettingGroupRef) EntryKey() string { return r.Group }

func (SettingGroupRef) secretRef() {}

// ConfigMapKeyRef is the single-key form: Key names the entry holding the payload
type ConfigMapKeyRef struct {
	Name string `json:"name" yaml:"name"`
	Key  string `json:"key" yaml:"key"`
}

// ConfigMapName implements SecretRef
func (r ConfigMapKeyRef) ConfigMapName() string { return r.Name }

// EntryKey implements SecretRef
func (r ConfigMapKeyRef) EntryKey() string { return r.Key }

func (ConfigMapKeyRef) secretRef() {}

var (
	errNoSecretRef        = errors.New("no credential reference configured")
	errAmbiguousSecretRef = errors.New("both configMapKeyRef and settingRef/configMapRef are configured")
	errIncompleteRef      = errors.New("credential reference is incomplete")
)

// SecretRef converts the stored credential location into exactly one variant
func (s *AuthProviderSpec) SecretRef() (SecretRef, error) {
	legacy := s.SettingRef != nil || s.ConfigMapRef != nil
	keyed := s.ConfigMapKeyRef != nil

	switch {
	case legacy && keyed:
		return nil, errAmbiguousSecretRef
	case keyed:
		ref := *s.ConfigMapKeyRef
		if ref.Name == "" || ref.Key == "" {
			return nil, errIncompleteRef
		}
		return ref, nil
	case legacy:
		if s.SettingRef == nil || s.ConfigMapRef == nil ||
			s.SettingRef.Group == "" || s.ConfigMapRef.Name == "" {
			return nil, errIncompleteRef
		}
		return SettingGroupRef{
			SettingName: s.SettingRef.Name,
			Group:       s.SettingRef.Group,
			ConfigMap:   s.ConfigMapRef.Name,
		}, nil
	default:
		return nil, errNoSecretRef
	}
}

// ClientRegistration is a resolved, ready-to-use OAuth2 client.
// It is immutable; accessors return copies of slice fields.
type ClientRegistration struct {
	registrationID    string
	clientID          string
	clientSecret      string
	clientName        string
	authorizationURI  string
	tokenURI          string
	userInfoURI       string
	jwkSetURI         string
	issuerURI         string
	userNameAttribute string
	scopes            []string
}

// RegistrationID returns the provider id the registration was resolved for
func (r *ClientRegistration) RegistrationID() string { return r.registrationID }

// ClientID returns the OAuth2 client id
func (r *ClientRegistration) ClientID() string { return r.clientID }

// ClientSecret returns the OAuth2 client secret
func (r *ClientRegistration) ClientSecret() string { return r.clientSecret }

// ClientName returns the provider display name
func (r *ClientRegistration) ClientName() string { return r.clientName }

// AuthorizationURI returns the provider authorization endpoint
func (r *ClientRegistration) AuthorizationURI() string { return r.authorizationURI }

// TokenURI returns the provider token endpoint
func (r *ClientRegistration) TokenURI() string { return r.tokenURI }

// UserInfoURI returns the provider user-info endpoint, if any
func (r *ClientRegistration) UserInfoURI() string { return r.userInfoURI }

// JWKSetURI returns the provider JWK set endpoint, if any
func (r *ClientRegistration) JWKSetURI() string { return r.jwkSetURI }

// IssuerURI returns the provider issuer, if any
func (r *ClientRegistration) IssuerURI() string { return r.issuerURI }

// UserNameAttribute returns the user-info attribute naming the subject
func (r *ClientRegistration) UserNameAttribute() string { return r.userNameAttribute }

// Scopes returns a copy of the requested scopes
func (r *ClientRegistration) Scopes() []string { return slices.Clone(r.scopes) }

// OAuth2Config builds an x/oauth2 client configuration for this registration
func (r *ClientRegistration) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.clientID,
		ClientSecret: r.clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.authorizationURI,
			TokenURL: r.tokenURI,
		},
		Scopes: r.Scopes(),
	}
}

package repository

import (
	"maps"
	"slices"

	"github.com/ericfitz/oauthreg/api/models"
	"github.com/ericfitz/oauthreg/auth/registration"
)

func convertModelToAuthProvider(m *models.AuthProvider) *registration.AuthProvider {
	p := &registration.AuthProvider{
		Name: m.Name,
		Spec: registration.AuthProviderSpec{
			DisplayName:       m.DisplayName,
			Enabled:           m.Enabled.Bool(),
			AuthenticationURL: m.AuthenticationURL,
			ClientRegistration: registration.ProviderEndpoints{
				AuthorizationURI:  m.AuthorizationURI,
				TokenURI:          m.TokenURI,
				UserInfoURI:       m.UserInfoURI,
				JWKSetURI:         m.JWKSetURI,
				IssuerURI:         m.IssuerURI,
				UserNameAttribute: m.UserNameAttribute,
			},
		},
	}
	if m.Description != nil {
		p.Spec.Description = *m.Description
	}
	if len(m.Scopes) > 0 {
		p.Spec.ClientRegistration.Scopes = slices.Clone([]string(m.Scopes))
	}

	if m.SettingName != nil || m.SettingGroup != nil {
		p.Spec.SettingRef = &registration.SettingRef{Name: deref(m.SettingName), Group: deref(m.SettingGroup)}
	}
	if m.ConfigMapName != nil {
		p.Spec.ConfigMapRef = &registration.ConfigMapRef{Name: *m.ConfigMapName}
	}
	if m.ConfigMapKeyName != nil || m.ConfigMapKey != nil {
		p.Spec.ConfigMapKeyRef = &registration.ConfigMapKeyRef{Name: deref(m.ConfigMapKeyName), Key: deref(m.ConfigMapKey)}
	}
	return p
}

func convertAuthProviderToModel(p *registration.AuthProvider) *models.AuthProvider {
	endpoints := p.Spec.ClientRegistration
	m := &models.AuthProvider{
		Name:              p.Name,
		DisplayName:       p.Spec.DisplayName,
		Enabled:           models.DBBool(p.Spec.Enabled),
		AuthenticationURL: p.Spec.AuthenticationURL,
		AuthorizationURI:  endpoints.AuthorizationURI,
		TokenURI:          endpoints.TokenURI,
		UserInfoURI:       endpoints.UserInfoURI,
		JWKSetURI:         endpoints.JWKSetURI,
		IssuerURI:         endpoints.IssuerURI,
		Scopes:            models.StringArray(slices.Clone(endpoints.Scopes)),
		UserNameAttribute: endpoints.UserNameAttribute,
	}
	if p.Spec.Description != "" {
		m.Description = ptr(p.Spec.Description)
	}
	if ref := p.Spec.SettingRef; ref != nil {
		m.SettingName = ptr(ref.Name)
		m.SettingGroup = ptr(ref.Group)
	}
	if ref := p.Spec.ConfigMapRef; ref != nil {
		m.ConfigMapName = ptr(ref.Name)
	}
	if ref := p.Spec.ConfigMapKeyRef; ref != nil {
		m.ConfigMapKeyName = ptr(ref.Name)
		m.ConfigMapKey = ptr(ref.Key)
	}
	return m
}

func convertModelToConfigMap(m *models.ConfigMap) *registration.ConfigMap {
	return &registration.ConfigMap{Name: m.Name, Data: maps.Clone(map[string]string(m.Data))}
}

// cloneAuthProvider deep-copies a provider so stores never share mutable state with callers
func cloneAuthProvider(p *registration.AuthProvider) *registration.AuthProvider {
	if p == nil {
		return nil
	}
	out := *p
	out.Spec.ClientRegistration.Scopes = slices.Clone(p.Spec.ClientRegistration.Scopes)
	if p.Spec.SettingRef != nil {
		ref := *p.Spec.SettingRef
		out.Spec.SettingRef = &ref
	}
	if p.Spec.ConfigMapRef != nil {
		ref := *p.Spec.ConfigMapRef
		out.Spec.ConfigMapRef = &ref
	}
	if p.Spec.ConfigMapKeyRef != nil {
		ref := *p.Spec.ConfigMapKeyRef
		out.Spec.ConfigMapKeyRef = &ref
	}
	return &out
}

func cloneConfigMap(c *registration.ConfigMap) *registration.ConfigMap {
	if c == nil {
		return nil
	}
	return &registration.ConfigMap{Name: c.Name, Data: maps.Clone(c.Data)}
}

func ptr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

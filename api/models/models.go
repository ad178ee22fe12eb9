// Package models defines GORM models for the auth provider store.
// The models are dialect-neutral across PostgreSQL, MySQL, SQL Server and SQLite.
package models

import (
	"time"
)

// AuthProvider is the stored form of an OAuth2 provider definition.
// The credential location columns are nullable; which ones are set selects
// the keyed-map form (setting + config map) or the single-key form.
type AuthProvider struct {
	Name              string      `gorm:"column:name;primaryKey;type:varchar(255)"`
	DisplayName       string      `gorm:"column:display_name;type:varchar(255);not null"`
	Description       *string     `gorm:"column:description;type:varchar(1024)"`
	Enabled           DBBool      `gorm:"column:enabled;not null"`
	AuthenticationURL string      `gorm:"column:authentication_url;type:varchar(1024)"`
	AuthorizationURI  string      `gorm:"column:authorization_uri;type:varchar(1024);not null"`
	TokenURI          string      `gorm:"column:token_uri;type:varchar(1024);not null"`
	UserInfoURI       string      `gorm:"column:user_info_uri;type:varchar(1024)"`
	JWKSetURI         string      `gorm:"column:jwk_set_uri;type:varchar(1024)"`
	IssuerURI         string      `gorm:"column:issuer_uri;type:varchar(1024)"`
	Scopes            StringArray `gorm:"column:scopes"`
	UserNameAttribute string      `gorm:"column:user_name_attribute;type:varchar(255)"`

	SettingName      *string `gorm:"column:setting_name;type:varchar(255)"`
	SettingGroup     *string `gorm:"column:setting_group;type:varchar(255)"`
	ConfigMapName    *string `gorm:"column:config_map_name;type:varchar(255)"`
	ConfigMapKeyName *string `gorm:"column:config_map_key_name;type:varchar(255)"`
	ConfigMapKey     *string `gorm:"column:config_map_key;type:varchar(255)"`

	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	ModifiedAt time.Time `gorm:"column:modified_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for AuthProvider
func (AuthProvider) TableName() string {
	return "auth_providers"
}

// ConfigMap is a named string-to-string container of provider credentials
type ConfigMap struct {
	Name       string    `gorm:"column:name;primaryKey;type:varchar(255)"`
	Data       StringMap `gorm:"column:data"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	ModifiedAt time.Time `gorm:"column:modified_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for ConfigMap
func (ConfigMap) TableName() string {
	return "config_maps"
}

// AllModels returns all GORM models for migration
func AllModels() []any {
	return []any{
		&AuthProvider{},
		&ConfigMap{},
	}
}

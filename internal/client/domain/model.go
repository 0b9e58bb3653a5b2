// Package domain contains core types for registered OAuth2 clients.
package domain

import (
	"strings"
	"time"
)

// AuthMethod is a closed set of client authentication methods.
type AuthMethod string

const (
	AuthMethodSecretBasic AuthMethod = "client_secret_basic"
	AuthMethodSecretPost  AuthMethod = "client_secret_post"
	AuthMethodNone        AuthMethod = "none"
)

// GrantType is a closed set of authorization grant types.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
	GrantDeviceCode        GrantType = "device_code"
)

func ValidAuthMethod(m AuthMethod) bool {
	switch m {
	case AuthMethodSecretBasic, AuthMethodSecretPost, AuthMethodNone:
		return true
	default:
		return false
	}
}

func ValidGrantType(g GrantType) bool {
	switch g {
	case GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials, GrantDeviceCode:
		return true
	default:
		return false
	}
}

// RegisteredClient holds the metadata for one OAuth2 client. Public clients
// store no secret and must require proof keys.
type RegisteredClient struct {
	ID               string       `gorm:"primaryKey;type:text"`
	ClientID         string       `gorm:"column:client_id;type:text;not null;uniqueIndex"`
	ClientName       string       `gorm:"column:client_name;type:text"`
	ClientSecretHash *string      `gorm:"column:client_secret_hash;type:text"`
	AuthMethods      []AuthMethod `gorm:"column:auth_methods;type:jsonb;serializer:json"`
	GrantTypes       []GrantType  `gorm:"column:grant_types;type:jsonb;serializer:json"`
	RedirectURIs     []string     `gorm:"column:redirect_uris;type:jsonb;serializer:json"`
	Scopes           []string     `gorm:"column:scopes;type:jsonb;serializer:json"`
	RequireProofKey  bool         `gorm:"column:require_proof_key;not null;default:false"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (RegisteredClient) TableName() string { return "registered_clients" }

// AllowsGrantType reports whether the client may use the grant type.
func (c *RegisteredClient) AllowsGrantType(g GrantType) bool {
	for _, allowed := range c.GrantTypes {
		if allowed == g {
			return true
		}
	}
	return false
}

// AllowsAuthMethod reports whether the client may authenticate with the method.
func (c *RegisteredClient) AllowsAuthMethod(m AuthMethod) bool {
	for _, allowed := range c.AuthMethods {
		if allowed == m {
			return true
		}
	}
	return false
}

// AllowsRedirectURI does an exact-match check against the registered set.
func (c *RegisteredClient) AllowsRedirectURI(uri string) bool {
	uri = strings.TrimSpace(uri)
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScopes reports whether every requested scope is registered.
func (c *RegisteredClient) AllowsScopes(scopes []string) bool {
	registered := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		registered[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := registered[s]; !ok {
			return false
		}
	}
	return true
}

// Package domain contains core types for OAuth2 authorization grants.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Refresh token lifecycle states.
const (
	RefreshStatusActive  = "ACTIVE"
	RefreshStatusRotated = "ROTATED"
	RefreshStatusRevoked = "REVOKED"
)

// Authorization is one grant from a user to a client. Each token kind lives
// in its own (value, issued_at, expires_at, metadata) group so the kinds can
// progress independently. Values are stored hashed, never in the clear.
type Authorization struct {
	ID                 string       `gorm:"primaryKey;type:text"`
	RegisteredClientID string       `gorm:"column:registered_client_id;type:text;not null;index"`
	UserID             snowflake.ID `gorm:"column:user_id;not null;index"`
	GrantType          string       `gorm:"column:grant_type;type:text;not null"`
	Scopes             []string     `gorm:"column:scopes;type:jsonb;serializer:json"`

	CodeValue     *string           `gorm:"column:code_value;type:text;uniqueIndex"`
	CodeIssuedAt  *time.Time        `gorm:"column:code_issued_at"`
	CodeExpiresAt *time.Time        `gorm:"column:code_expires_at"`
	CodeUsedAt    *time.Time        `gorm:"column:code_used_at"`
	CodeMetadata  datatypes.JSONMap `gorm:"column:code_metadata;type:jsonb"`

	AccessTokenValue     *string           `gorm:"column:access_token_value;type:text;uniqueIndex"`
	AccessTokenIssuedAt  *time.Time        `gorm:"column:access_token_issued_at"`
	AccessTokenExpiresAt *time.Time        `gorm:"column:access_token_expires_at"`
	AccessTokenMetadata  datatypes.JSONMap `gorm:"column:access_token_metadata;type:jsonb"`

	RefreshTokenValue     *string    `gorm:"column:refresh_token_value;type:text"`
	RefreshTokenIssuedAt  *time.Time `gorm:"column:refresh_token_issued_at"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refresh_token_expires_at"`

	IDTokenValue     *string           `gorm:"column:id_token_value;type:text"`
	IDTokenIssuedAt  *time.Time        `gorm:"column:id_token_issued_at"`
	IDTokenExpiresAt *time.Time        `gorm:"column:id_token_expires_at"`
	IDTokenMetadata  datatypes.JSONMap `gorm:"column:id_token_metadata;type:jsonb"`

	UserCodeValue     *string    `gorm:"column:user_code_value;type:text"`
	UserCodeIssuedAt  *time.Time `gorm:"column:user_code_issued_at"`
	UserCodeExpiresAt *time.Time `gorm:"column:user_code_expires_at"`

	DeviceCodeValue     *string    `gorm:"column:device_code_value;type:text"`
	DeviceCodeIssuedAt  *time.Time `gorm:"column:device_code_issued_at"`
	DeviceCodeExpiresAt *time.Time `gorm:"column:device_code_expires_at"`

	RevokedAt *time.Time `gorm:"column:revoked_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Authorization) TableName() string { return "authorizations" }

// RefreshTokenRecord is one link in a rotation chain. Rotation replaces the
// ACTIVE record with a new one and marks the old one ROTATED; presenting a
// ROTATED or REVOKED token again is treated as replay.
type RefreshTokenRecord struct {
	ID                 snowflake.ID  `gorm:"primaryKey;autoIncrement:false"`
	AuthorizationID    string        `gorm:"column:authorization_id;type:text;not null;index"`
	RegisteredClientID string        `gorm:"column:registered_client_id;type:text;not null;index"`
	UserID             snowflake.ID  `gorm:"column:user_id;not null;index"`
	TokenHash          string        `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	Status             string        `gorm:"column:status;type:text;not null;default:ACTIVE"`
	RotationCount      int           `gorm:"column:rotation_count;not null;default:0"`
	ReplacedByID       *snowflake.ID `gorm:"column:replaced_by_id"`
	DeviceFingerprint  *string       `gorm:"column:device_fingerprint;type:text"`
	IPAddress          *string       `gorm:"column:ip_address;type:text"`
	UserAgent          *string       `gorm:"column:user_agent;type:text"`
	IssuedAt           time.Time     `gorm:"column:issued_at;not null"`
	ExpiresAt          time.Time     `gorm:"column:expires_at;not null"`
	RevokedAt          *time.Time    `gorm:"column:revoked_at"`
	CreatedAt          time.Time     `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (RefreshTokenRecord) TableName() string { return "refresh_tokens" }

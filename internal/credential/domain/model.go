// Package domain contains core types for stored credentials and the
// single-use recovery tokens tied to them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Credential holds the password hash and lockout state for one user.
// Exactly one row exists per user and it shares the user's lifecycle.
type Credential struct {
	UserID            snowflake.ID `gorm:"column:user_id;primaryKey"`
	PasswordHash      string       `gorm:"column:password_hash;type:text;not null"`
	Algo              string       `gorm:"column:algo;type:text;not null;default:'argon2id'"`
	MFAEnabled        bool         `gorm:"column:mfa_enabled;not null;default:false"`
	FailedAttempts    int          `gorm:"column:failed_attempts;not null;default:0"`
	LockedUntil       *time.Time   `gorm:"column:locked_until"`
	PasswordChangedAt time.Time    `gorm:"column:password_changed_at;not null"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time    `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Credential) TableName() string { return "credentials" }

// ResetToken is a single-use password reset token. Once used it stays inert
// even before its expiry.
type ResetToken struct {
	ID        string       `gorm:"primaryKey;type:text"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null"`
	Used      bool         `gorm:"column:used;not null;default:false"`
	UsedAt    *time.Time   `gorm:"column:used_at"`
	IPAddress string       `gorm:"column:ip_address;type:text"`
	CreatedAt time.Time    `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (ResetToken) TableName() string { return "reset_tokens" }

// VerificationToken is a single-use email verification token.
type VerificationToken struct {
	ID        string       `gorm:"primaryKey;type:text"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null"`
	Used      bool         `gorm:"column:used;not null;default:false"`
	UsedAt    *time.Time   `gorm:"column:used_at"`
	CreatedAt time.Time    `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (VerificationToken) TableName() string { return "verification_tokens" }

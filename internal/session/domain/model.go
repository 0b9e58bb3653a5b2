// Package domain contains core types for server-side sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Session is an authenticated server-side session. ClientID is set when the
// session was established through an OAuth2 flow for a specific client.
type Session struct {
	ID             string            `gorm:"primaryKey;type:text"`
	UserID         snowflake.ID      `gorm:"column:user_id;not null;index"`
	ClientID       *string           `gorm:"column:client_id;type:text;index"`
	Data           datatypes.JSONMap `gorm:"column:data;type:jsonb"`
	IPAddress      *string           `gorm:"column:ip_address;type:text"`
	UserAgent      *string           `gorm:"column:user_agent;type:text"`
	ExpiresAt      time.Time         `gorm:"column:expires_at;not null"`
	LastAccessedAt time.Time         `gorm:"column:last_accessed_at;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

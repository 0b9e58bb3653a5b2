// Package domain contains core types for the consent ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Consent records which scopes a user has approved for a client. One row
// per (client, user) pair, scopes accumulate across grants.
type Consent struct {
	RegisteredClientID string       `gorm:"column:registered_client_id;type:text;primaryKey"`
	UserID             snowflake.ID `gorm:"column:user_id;primaryKey"`
	Scopes             []string     `gorm:"column:scopes;type:jsonb;serializer:json"`
	CreatedAt          time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time    `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Consent) TableName() string { return "authorization_consents" }

// Covers reports whether every requested scope has been approved.
func (c *Consent) Covers(scopes []string) bool {
	approved := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		approved[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := approved[s]; !ok {
			return false
		}
	}
	return true
}

// Package domain contains core types for user accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/user/role"
)

// Status values a user account moves through.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusDisabled  = "DISABLED"
)

// User represents a system user account. The matching credential row shares
// its lifecycle and is created and deleted with it.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Username      string       `gorm:"type:text;not null;uniqueIndex"`
	Email         string       `gorm:"type:text;not null;uniqueIndex"`
	EmailVerified bool         `gorm:"column:email_verified;not null;default:false"`
	Phone         string       `gorm:"type:text"`
	PhoneVerified bool         `gorm:"column:phone_verified;not null;default:false"`
	FirstName     string       `gorm:"column:first_name;type:text"`
	LastName      string       `gorm:"column:last_name;type:text"`
	Status        string       `gorm:"type:text;not null;default:'PENDING'"`
	Role          role.Role    `gorm:"column:global_role;type:text;not null"`
	Expired       bool         `gorm:"not null;default:false"`
	Disabled      bool         `gorm:"not null;default:false"`
	LastLoginAt   *time.Time   `gorm:"column:last_login_at"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Package domain contains core types for the audit log.
package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is an immutable security event record. Rows are inserted and never
// updated or deleted by the service.
type AuditLog struct {
	ID           string            `gorm:"primaryKey;type:text"`
	Actor        string            `gorm:"column:actor;type:text;not null;index"`
	Action       string            `gorm:"column:action;type:text;not null;index"`
	Success      bool              `gorm:"column:success;not null"`
	ErrorMessage *string           `gorm:"column:error_message;type:text"`
	IPAddress    *string           `gorm:"column:ip_address;type:text"`
	UserAgent    *string           `gorm:"column:user_agent;type:text"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"column:created_at;not null;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Entry is what callers hand to the recorder.
type Entry struct {
	Actor     string
	Action    string
	Success   bool
	Error     string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// Severity tags used in entry metadata for events that warrant operator attention.
const (
	SeverityElevated = "elevated"
)

// Recorder appends security events. Record is best-effort and must never fail
// the calling operation.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type ListFilter struct {
	Actor   string
	Action  string
	Success *bool
	StartAt *time.Time
	EndAt   *time.Time
	Limit   int
}

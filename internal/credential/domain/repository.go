package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, cred *Credential) error
	FindByUserID(ctx context.Context, userID snowflake.ID) (*Credential, error)
	// IncrementFailedAttempts is a single atomic counter bump; the returned
	// value is the count after the increment.
	IncrementFailedAttempts(ctx context.Context, userID snowflake.ID) (int, error)
	Lock(ctx context.Context, userID snowflake.ID, until time.Time) error
	ClearFailedAttempts(ctx context.Context, userID snowflake.ID) error
	UpdatePassword(ctx context.Context, userID snowflake.ID, hash, algo string, changedAt time.Time) error

	CreateResetToken(ctx context.Context, token *ResetToken) error
	// ConsumeResetToken atomically flips used=false to true for an unexpired
	// token and returns the row. A second consume observes used=true and fails.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)

	CreateVerificationToken(ctx context.Context, token *VerificationToken) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*VerificationToken, error)
}

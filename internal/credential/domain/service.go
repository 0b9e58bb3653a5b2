package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service is the credential store: password verification with lockout,
// rotation, and the single-use recovery token flows.
type Service interface {
	// Verify authenticates a username/password pair. On success the matched
	// user id is returned; failures map to ErrNotFound, ErrAccountLocked,
	// ErrAccountDisabled or ErrBadPassword.
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error

	CreateResetToken(ctx context.Context, userID snowflake.ID, ipAddress string) (string, error)
	// ResetPassword consumes a reset token and installs the new password,
	// returning the affected user so callers can tear down live sessions.
	ResetPassword(ctx context.Context, rawToken, newPassword string) (snowflake.ID, error)

	CreateVerificationToken(ctx context.Context, userID snowflake.ID) (string, error)
	ConsumeVerificationToken(ctx context.Context, rawToken string) (snowflake.ID, error)
}

type VerifyRequest struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

type VerifyResult struct {
	UserID   snowflake.ID
	Username string
}

type ChangePasswordRequest struct {
	UserID      snowflake.ID
	Current     string
	NewPassword string
	IPAddress   string
	UserAgent   string
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Manager owns the session lifecycle. Expired sessions are treated as absent
// on access and reaped lazily.
type Manager interface {
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)
	// Touch loads the session and slides last_accessed_at forward. It
	// returns ErrSessionExpired when the deadline has passed.
	Touch(ctx context.Context, id string) (*Session, error)
	Invalidate(ctx context.Context, id string) error
	InvalidateAllForUser(ctx context.Context, userID snowflake.ID) (int64, error)
	InvalidateForUserAndClient(ctx context.Context, userID snowflake.ID, clientID string) (int64, error)
}

type CreateSessionRequest struct {
	UserID    snowflake.ID
	ClientID  *string
	Data      map[string]interface{}
	IPAddress *string
	UserAgent *string
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Ledger tracks scope approvals per (client, user) pair.
type Ledger interface {
	// Grant merges the scopes into the existing approval set. Granting a
	// scope twice is a no-op.
	Grant(ctx context.Context, clientID string, userID snowflake.ID, scopes []string) (*Consent, error)
	HasConsented(ctx context.Context, clientID string, userID snowflake.ID, scopes []string) (bool, error)
	Approved(ctx context.Context, clientID string, userID snowflake.ID) ([]string, error)
	Revoke(ctx context.Context, clientID string, userID snowflake.ID) error
}

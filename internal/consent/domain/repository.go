package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Find(ctx context.Context, clientID string, userID snowflake.ID) (*Consent, error)
	Save(ctx context.Context, consent *Consent) error
	Delete(ctx context.Context, clientID string, userID snowflake.ID) error
}

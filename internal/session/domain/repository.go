package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	UpdateLastAccessed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID snowflake.ID) (int64, error)
	DeleteByUserAndClient(ctx context.Context, userID snowflake.ID, clientID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

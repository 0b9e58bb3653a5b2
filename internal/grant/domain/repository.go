package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, auth *Authorization) error
	FindByID(ctx context.Context, id string) (*Authorization, error)
	FindByCodeHash(ctx context.Context, hash string) (*Authorization, error)
	FindByAccessTokenHash(ctx context.Context, hash string) (*Authorization, error)
	// ConsumeCode marks the code used if and only if it is still unused.
	// Returns false when another exchange got there first.
	ConsumeCode(ctx context.Context, id string, usedAt time.Time) (bool, error)
	Update(ctx context.Context, auth *Authorization) error
	Revoke(ctx context.Context, id string, at time.Time) error

	CreateRefreshToken(ctx context.Context, record *RefreshTokenRecord) error
	FindRefreshTokenByHash(ctx context.Context, hash string) (*RefreshTokenRecord, error)
	// RotateRefreshToken flips the record from ACTIVE to ROTATED and links
	// its successor. Returns false when the record was not ACTIVE anymore.
	RotateRefreshToken(ctx context.Context, id, replacedBy snowflake.ID, at time.Time) (bool, error)
	RevokeRefreshToken(ctx context.Context, id snowflake.ID, at time.Time) error
	// RevokeRefreshTokens revokes every non-revoked token for the
	// (user, client) pair and returns how many rows changed.
	RevokeRefreshTokens(ctx context.Context, userID snowflake.ID, clientID string, at time.Time) (int64, error)
}

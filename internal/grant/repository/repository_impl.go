package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/grant/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates a gorm-backed grant repository.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, auth *domain.Authorization) error {
	if err := r.db.WithContext(ctx).Create(auth).Error; err != nil {
		return fmt.Errorf("create authorization: %w", err)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*domain.Authorization, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByCodeHash(ctx context.Context, hash string) (*domain.Authorization, error) {
	return r.findOne(ctx, "code_value = ?", hash)
}

func (r *repository) FindByAccessTokenHash(ctx context.Context, hash string) (*domain.Authorization, error) {
	return r.findOne(ctx, "access_token_value = ?", hash)
}

func (r *repository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Authorization, error) {
	var auth domain.Authorization
	err := r.db.WithContext(ctx).Where(query, arg).First(&auth).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAuthorizationNotFound
		}
		return nil, fmt.Errorf("find authorization: %w", err)
	}
	return &auth, nil
}

func (r *repository) ConsumeCode(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Authorization{}).
		Where("id = ? AND code_used_at IS NULL", id).
		Updates(map[string]interface{}{
			"code_used_at": usedAt,
			"updated_at":   usedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("consume authorization code: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Update(ctx context.Context, auth *domain.Authorization) error {
	if err := r.db.WithContext(ctx).Save(auth).Error; err != nil {
		return fmt.Errorf("update authorization: %w", err)
	}
	return nil
}

func (r *repository) Revoke(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Authorization{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{
			"revoked_at": at,
			"updated_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("revoke authorization: %w", err)
	}
	return nil
}

func (r *repository) CreateRefreshToken(ctx context.Context, record *domain.RefreshTokenRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *repository) FindRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	var record domain.RefreshTokenRecord
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAuthorizationNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

func (r *repository) RotateRefreshToken(ctx context.Context, id, replacedBy snowflake.ID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.RefreshTokenRecord{}).
		Where("id = ? AND status = ?", id, domain.RefreshStatusActive).
		Updates(map[string]interface{}{
			"status":         domain.RefreshStatusRotated,
			"replaced_by_id": replacedBy,
			"revoked_at":     at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("rotate refresh token: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) RevokeRefreshToken(ctx context.Context, id snowflake.ID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.RefreshTokenRecord{}).
		Where("id = ? AND status <> ?", id, domain.RefreshStatusRevoked).
		Updates(map[string]interface{}{
			"status":     domain.RefreshStatusRevoked,
			"revoked_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *repository) RevokeRefreshTokens(ctx context.Context, userID snowflake.ID, clientID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.RefreshTokenRecord{}).
		Where("user_id = ? AND registered_client_id = ? AND status <> ?", userID, clientID, domain.RefreshStatusRevoked).
		Updates(map[string]interface{}{
			"status":     domain.RefreshStatusRevoked,
			"revoked_at": at,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

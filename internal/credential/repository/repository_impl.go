package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, tx *gorm.DB, cred *domain.Credential) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(cred).Error
}

func (r *repo) FindByUserID(ctx context.Context, userID snowflake.ID) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *repo) IncrementFailedAttempts(ctx context.Context, userID snowflake.ID) (int, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ?", userID).
		UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1"))
	if tx.Error != nil {
		return 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}

	var cred domain.Credential
	if err := r.db.WithContext(ctx).Select("failed_attempts").Where("user_id = ?", userID).First(&cred).Error; err != nil {
		return 0, err
	}
	return cred.FailedAttempts, nil
}

func (r *repo) Lock(ctx context.Context, userID snowflake.ID, until time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"locked_until":    until,
			"failed_attempts": 0,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ClearFailedAttempts(ctx context.Context, userID snowflake.ID) error {
	tx := r.db.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"failed_attempts": 0,
			"locked_until":    nil,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) UpdatePassword(ctx context.Context, userID snowflake.ID, hash, algo string, changedAt time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"password_hash":       hash,
			"algo":                algo,
			"password_changed_at": changedAt,
			"failed_attempts":     0,
			"locked_until":        nil,
			"updated_at":          changedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) CreateResetToken(ctx context.Context, token *domain.ResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error) {
	tx := r.db.WithContext(ctx).Model(&domain.ResetToken{}).
		Where("token_hash = ? AND used = ? AND expires_at > ?", tokenHash, false, now).
		Updates(map[string]any{
			"used":    true,
			"used_at": now,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, domain.ErrTokenInvalid
	}

	var token domain.ResetToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repo) CreateVerificationToken(ctx context.Context, token *domain.VerificationToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repo) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*domain.VerificationToken, error) {
	tx := r.db.WithContext(ctx).Model(&domain.VerificationToken{}).
		Where("token_hash = ? AND used = ? AND expires_at > ?", tokenHash, false, now).
		Updates(map[string]any{
			"used":    true,
			"used_at": now,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, domain.ErrTokenInvalid
	}

	var token domain.VerificationToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/session/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates a gorm-backed session repository.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *domain.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

func (r *repository) UpdateLastAccessed(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed_at", at).Error
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Session{})
	if result.Error != nil {
		return fmt.Errorf("delete session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *repository) DeleteByUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete sessions by user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) DeleteByUserAndClient(ctx context.Context, userID snowflake.ID, clientID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ?", userID, clientID).
		Delete(&domain.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete sessions by user and client: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&domain.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

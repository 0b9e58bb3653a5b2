package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/consent/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// New creates a gorm-backed consent repository.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, clientID string, userID snowflake.ID) (*domain.Consent, error) {
	var consent domain.Consent
	err := r.db.WithContext(ctx).
		Where("registered_client_id = ? AND user_id = ?", clientID, userID).
		First(&consent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConsentNotFound
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}
	return &consent, nil
}

func (r *repository) Save(ctx context.Context, consent *domain.Consent) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "registered_client_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"scopes", "updated_at"}),
		}).
		Create(consent).Error
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, clientID string, userID snowflake.ID) error {
	result := r.db.WithContext(ctx).
		Where("registered_client_id = ? AND user_id = ?", clientID, userID).
		Delete(&domain.Consent{})
	if result.Error != nil {
		return fmt.Errorf("delete consent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConsentNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/identra/internal/client/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// New creates a gorm-backed client repository.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, client *domain.RegisteredClient) error {
	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		return fmt.Errorf("create registered client: %w", err)
	}
	return nil
}

func (r *repository) FindByClientID(ctx context.Context, clientID string) (*domain.RegisteredClient, error) {
	var client domain.RegisteredClient
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("find registered client: %w", err)
	}
	return &client, nil
}

package domain

import "context"

type Repository interface {
	Create(ctx context.Context, client *RegisteredClient) error
	FindByClientID(ctx context.Context, clientID string) (*RegisteredClient, error)
}

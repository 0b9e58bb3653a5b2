package service

import (
	"context"

	"github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/config"
	"go.uber.org/zap"
)

// BootstrapDefaultClient seeds the admin client on first boot so the server
// is usable before any client has been registered. It is a no-op when the
// client already exists or seeding is disabled.
func BootstrapDefaultClient(ctx context.Context, cfg config.Config, reg domain.Registry, log *zap.Logger) error {
	if !cfg.BootstrapDefaultClient {
		return nil
	}
	if _, err := reg.Resolve(ctx, "admin-client"); err == nil {
		return nil
	} else if err != domain.ErrClientNotFound {
		return err
	}

	_, err := reg.Create(ctx, domain.CreateClientRequest{
		ClientID:     "admin-client",
		ClientName:   "Admin Client",
		ClientSecret: cfg.DefaultClientSecret,
		AuthMethods:  []domain.AuthMethod{domain.AuthMethodSecretBasic},
		GrantTypes:   []domain.GrantType{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		RedirectURIs: []string{"http://localhost:8080/login/oauth2/code/admin-client"},
		Scopes:       []string{"read", "write"},
	})
	if err != nil && err != domain.ErrClientExists {
		return err
	}
	log.Named("client").Info("default admin client seeded")
	return nil
}

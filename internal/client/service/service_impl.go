package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
)

type registry struct {
	repo  domain.Repository
	clock clock.Clock
	log   *zap.Logger
}

// New creates the client registry service.
func New(repo domain.Repository, clk clock.Clock, log *zap.Logger) domain.Registry {
	return &registry{repo: repo, clock: clk, log: log.Named("client")}
}

func (s *registry) Create(ctx context.Context, req domain.CreateClientRequest) (*domain.RegisteredClient, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrInvalidRequest)
	}
	if len(req.AuthMethods) == 0 || len(req.GrantTypes) == 0 {
		return nil, fmt.Errorf("%w: auth methods and grant types are required", domain.ErrInvalidRequest)
	}
	for _, m := range req.AuthMethods {
		if !domain.ValidAuthMethod(m) {
			return nil, fmt.Errorf("%w: unknown auth method %q", domain.ErrInvalidRequest, m)
		}
	}
	for _, g := range req.GrantTypes {
		if !domain.ValidGrantType(g) {
			return nil, fmt.Errorf("%w: unknown grant type %q", domain.ErrInvalidRequest, g)
		}
	}
	for _, raw := range req.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid redirect uri %q", domain.ErrInvalidRequest, raw)
		}
	}

	confidential := false
	for _, m := range req.AuthMethods {
		if m != domain.AuthMethodNone {
			confidential = true
		}
	}
	if confidential && strings.TrimSpace(req.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: confidential clients require a secret", domain.ErrInvalidRequest)
	}
	if !confidential {
		// Public clients have nothing to authenticate with, so proof keys
		// are the only binding between authorize and token requests.
		req.RequireProofKey = true
		req.ClientSecret = ""
	}

	if _, err := s.repo.FindByClientID(ctx, req.ClientID); err == nil {
		return nil, domain.ErrClientExists
	} else if err != domain.ErrClientNotFound {
		return nil, err
	}

	now := s.clock.Now()
	client := &domain.RegisteredClient{
		ID:              uuid.NewString(),
		ClientID:        req.ClientID,
		ClientName:      strings.TrimSpace(req.ClientName),
		AuthMethods:     req.AuthMethods,
		GrantTypes:      req.GrantTypes,
		RedirectURIs:    req.RedirectURIs,
		Scopes:          req.Scopes,
		RequireProofKey: req.RequireProofKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ClientSecret != "" {
		h := hashSecret(req.ClientSecret)
		client.ClientSecretHash = &h
	}

	if err := s.repo.Create(ctx, client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrClientExists
		}
		return nil, err
	}
	s.log.Info("registered client created", zap.String("client_id", client.ClientID))
	return client, nil
}

func (s *registry) Resolve(ctx context.Context, clientID string) (*domain.RegisteredClient, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrInvalidRequest)
	}
	return s.repo.FindByClientID(ctx, clientID)
}

func (s *registry) Authenticate(ctx context.Context, clientID, presentedSecret string, method domain.AuthMethod) (*domain.RegisteredClient, error) {
	client, err := s.Resolve(ctx, clientID)
	if err != nil {
		if err == domain.ErrClientNotFound {
			return nil, domain.ErrInvalidClient
		}
		return nil, err
	}
	if !client.AllowsAuthMethod(method) {
		return nil, domain.ErrInvalidClient
	}

	if method == domain.AuthMethodNone {
		if presentedSecret != "" {
			return nil, domain.ErrInvalidClient
		}
		return client, nil
	}

	if client.ClientSecretHash == nil || presentedSecret == "" {
		return nil, domain.ErrInvalidClient
	}
	presented := hashSecret(presentedSecret)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*client.ClientSecretHash)) != 1 {
		return nil, domain.ErrInvalidClient
	}
	return client, nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/consent/domain"
	"go.uber.org/zap"
)

type ledger struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

// New creates the consent ledger service.
func New(log *zap.Logger, repo domain.Repository, clk clock.Clock) domain.Ledger {
	return &ledger{log: log.Named("consent"), repo: repo, clock: clk}
}

func (s *ledger) Grant(ctx context.Context, clientID string, userID snowflake.ID, scopes []string) (*domain.Consent, error) {
	if clientID == "" || userID == 0 {
		return nil, fmt.Errorf("%w: client id and user id are required", domain.ErrInvalidRequest)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", domain.ErrInvalidRequest)
	}

	now := s.clock.Now()
	consent, err := s.repo.Find(ctx, clientID, userID)
	if err == domain.ErrConsentNotFound {
		consent = &domain.Consent{
			RegisteredClientID: clientID,
			UserID:             userID,
			CreatedAt:          now,
		}
	} else if err != nil {
		return nil, err
	}

	consent.Scopes = mergeScopes(consent.Scopes, scopes)
	consent.UpdatedAt = now
	if err := s.repo.Save(ctx, consent); err != nil {
		return nil, err
	}
	return consent, nil
}

func (s *ledger) HasConsented(ctx context.Context, clientID string, userID snowflake.ID, scopes []string) (bool, error) {
	consent, err := s.repo.Find(ctx, clientID, userID)
	if err == domain.ErrConsentNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return consent.Covers(scopes), nil
}

func (s *ledger) Approved(ctx context.Context, clientID string, userID snowflake.ID) ([]string, error) {
	consent, err := s.repo.Find(ctx, clientID, userID)
	if err == domain.ErrConsentNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return consent.Scopes, nil
}

func (s *ledger) Revoke(ctx context.Context, clientID string, userID snowflake.ID) error {
	if err := s.repo.Delete(ctx, clientID, userID); err != nil {
		return err
	}
	s.log.Info("consent revoked", zap.String("client_id", clientID), zap.Int64("user_id", int64(userID)))
	return nil
}

func mergeScopes(existing, granted []string) []string {
	set := make(map[string]struct{}, len(existing)+len(granted))
	for _, s := range existing {
		set[s] = struct{}{}
	}
	for _, s := range granted {
		set[s] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for s := range set {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return merged
}

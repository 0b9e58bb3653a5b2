package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	"github.com/smallbiznis/identra/internal/session/domain"
	"go.uber.org/zap"
)

type manager struct {
	log   *zap.Logger
	cfg   config.Config
	repo  domain.Repository
	clock clock.Clock
}

// New creates the session manager.
func New(log *zap.Logger, cfg config.Config, repo domain.Repository, clk clock.Clock) domain.Manager {
	return &manager{log: log.Named("session"), cfg: cfg, repo: repo, clock: clk}
}

func (m *manager) Create(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	if req.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	id, err := newSessionID(m.cfg.TokenBytes)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	session := &domain.Session{
		ID:             id,
		UserID:         req.UserID,
		ClientID:       req.ClientID,
		Data:           req.Data,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		ExpiresAt:      now.Add(m.cfg.SessionTTL),
		LastAccessedAt: now,
		CreatedAt:      now,
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *manager) Touch(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}

	session, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	if !session.ExpiresAt.After(now) {
		// Reap lazily. A failed delete just leaves the row for the next
		// sweep, the caller still sees the session as expired.
		if err := m.repo.Delete(ctx, id); err != nil && err != domain.ErrSessionNotFound {
			m.log.Warn("failed to reap expired session", zap.Error(err))
		}
		return nil, domain.ErrSessionExpired
	}

	if err := m.repo.UpdateLastAccessed(ctx, id, now); err != nil {
		return nil, err
	}
	session.LastAccessedAt = now
	return session, nil
}

func (m *manager) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}
	return m.repo.Delete(ctx, id)
}

func (m *manager) InvalidateAllForUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	count, err := m.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.log.Info("invalidated all sessions for user", zap.Int64("user_id", int64(userID)), zap.Int64("count", count))
	}
	return count, nil
}

func (m *manager) InvalidateForUserAndClient(ctx context.Context, userID snowflake.ID, clientID string) (int64, error) {
	count, err := m.repo.DeleteByUserAndClient(ctx, userID, clientID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.log.Info("invalidated sessions for user and client",
			zap.Int64("user_id", int64(userID)),
			zap.String("client_id", clientID),
			zap.Int64("count", count))
	}
	return count, nil
}

func newSessionID(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	"github.com/smallbiznis/identra/internal/credential/domain"
	"github.com/smallbiznis/identra/internal/credential/password"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	"go.uber.org/zap"
)

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	repo     domain.Repository
	users    userdomain.Repository
	recorder auditdomain.Recorder
	clock    clock.Clock
}

func New(log *zap.Logger, cfg config.Config, repo domain.Repository, users userdomain.Repository, recorder auditdomain.Recorder, clk clock.Clock) domain.Service {
	return &Service{
		log:      log.Named("credential.service"),
		cfg:      cfg,
		repo:     repo,
		users:    users,
		recorder: recorder,
		clock:    clk,
	}
}

func (s *Service) Verify(ctx context.Context, req domain.VerifyRequest) (*domain.VerifyResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, domain.ErrInvalidRequest
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			// Burn a comparison so unknown usernames cost the same as real ones.
			password.VerifyDecoy(req.Password)
			s.audit(ctx, username, "user.login", false, "user_not_found", req)
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user.Disabled || user.Expired || user.Status == userdomain.StatusDisabled || user.Status == userdomain.StatusSuspended {
		s.audit(ctx, username, "user.login", false, "account_disabled", req)
		return nil, domain.ErrAccountDisabled
	}

	cred, err := s.repo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}

	now := s.clock.Now()
	if cred.LockedUntil != nil && cred.LockedUntil.After(now) {
		s.audit(ctx, username, "user.login", false, "account_locked", req)
		return nil, domain.ErrAccountLocked
	}

	if !password.Verify(req.Password, cred.PasswordHash, cred.Algo) {
		attempts, err := s.repo.IncrementFailedAttempts(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("increment failed attempts: %w", err)
		}
		if attempts >= s.cfg.LockoutThreshold {
			until := now.Add(s.cfg.LockoutDuration)
			if err := s.repo.Lock(ctx, user.ID, until); err != nil {
				return nil, fmt.Errorf("lock credential: %w", err)
			}
			s.audit(ctx, username, "credential.locked", false, "lockout_threshold_reached", req)
		}
		s.audit(ctx, username, "user.login", false, "bad_password", req)
		return nil, domain.ErrBadPassword
	}

	if err := s.repo.ClearFailedAttempts(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("clear failed attempts: %w", err)
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		s.log.Warn("failed to update last login", zap.Error(err))
	}

	s.audit(ctx, username, "user.login", true, "", req)

	return &domain.VerifyResult{
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	if req.UserID == 0 || req.Current == "" {
		return domain.ErrInvalidRequest
	}
	if len(strings.TrimSpace(req.NewPassword)) < s.cfg.MinPasswordLen {
		return domain.ErrInvalidRequest
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return err
	}

	cred, err := s.repo.FindByUserID(ctx, user.ID)
	if err != nil {
		return err
	}
	if !password.Verify(req.Current, cred.PasswordHash, cred.Algo) {
		s.auditUser(ctx, user.Username, "credential.password_change", false, "bad_password", req.IPAddress, req.UserAgent)
		return domain.ErrBadPassword
	}

	hashed, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed, password.AlgoArgon2id, s.clock.Now()); err != nil {
		return err
	}

	s.auditUser(ctx, user.Username, "credential.password_change", true, "", req.IPAddress, req.UserAgent)
	return nil
}

func (s *Service) CreateResetToken(ctx context.Context, userID snowflake.ID, ipAddress string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	raw, err := newOpaqueToken(s.cfg.TokenBytes)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	token := &domain.ResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		IPAddress: strings.TrimSpace(ipAddress),
		CreatedAt: now,
	}
	if err := s.repo.CreateResetToken(ctx, token); err != nil {
		return "", fmt.Errorf("persist reset token: %w", err)
	}

	s.auditUser(ctx, user.Username, "credential.reset_requested", true, "", ipAddress, "")
	return raw, nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (snowflake.ID, error) {
	if strings.TrimSpace(rawToken) == "" {
		return 0, domain.ErrTokenInvalid
	}
	if len(strings.TrimSpace(newPassword)) < s.cfg.MinPasswordLen {
		return 0, domain.ErrInvalidRequest
	}

	token, err := s.repo.ConsumeResetToken(ctx, hashToken(rawToken), s.clock.Now())
	if err != nil {
		return 0, err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpdatePassword(ctx, token.UserID, hashed, password.AlgoArgon2id, s.clock.Now()); err != nil {
		return 0, err
	}

	s.auditUser(ctx, token.UserID.String(), "credential.reset_completed", true, "", "", "")
	return token.UserID, nil
}

func (s *Service) CreateVerificationToken(ctx context.Context, userID snowflake.ID) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	raw, err := newOpaqueToken(s.cfg.TokenBytes)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	token := &domain.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateVerificationToken(ctx, token); err != nil {
		return "", fmt.Errorf("persist verification token: %w", err)
	}
	return raw, nil
}

func (s *Service) ConsumeVerificationToken(ctx context.Context, rawToken string) (snowflake.ID, error) {
	if strings.TrimSpace(rawToken) == "" {
		return 0, domain.ErrTokenInvalid
	}

	token, err := s.repo.ConsumeVerificationToken(ctx, hashToken(rawToken), s.clock.Now())
	if err != nil {
		return 0, err
	}

	if err := s.users.UpdateFields(ctx, token.UserID, map[string]any{
		"email_verified": true,
		"status":         userdomain.StatusActive,
	}); err != nil {
		return 0, err
	}

	s.auditUser(ctx, token.UserID.String(), "user.email_verified", true, "", "", "")
	return token.UserID, nil
}

func (s *Service) audit(ctx context.Context, actor, action string, success bool, reason string, req domain.VerifyRequest) {
	s.auditUser(ctx, actor, action, success, reason, req.IPAddress, req.UserAgent)
}

func (s *Service) auditUser(ctx context.Context, actor, action string, success bool, reason, ip, ua string) {
	s.recorder.Record(ctx, auditdomain.Entry{
		Actor:     actor,
		Action:    action,
		Success:   success,
		Error:     reason,
		IPAddress: ip,
		UserAgent: ua,
	})
}

func newOpaqueToken(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

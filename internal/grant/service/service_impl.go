package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	"github.com/smallbiznis/identra/internal/grant/domain"
	"github.com/smallbiznis/identra/internal/grant/token"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	"go.uber.org/zap"
)

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	repo     domain.Repository
	clients  clientdomain.Registry
	consents consentdomain.Ledger
	sessions sessiondomain.Manager
	recorder auditdomain.Recorder
	clock    clock.Clock
	genID    *snowflake.Node
}

func New(
	log *zap.Logger,
	cfg config.Config,
	repo domain.Repository,
	clients clientdomain.Registry,
	consents consentdomain.Ledger,
	sessions sessiondomain.Manager,
	recorder auditdomain.Recorder,
	clk clock.Clock,
	genID *snowflake.Node,
) domain.Service {
	return &Service{
		log:      log.Named("grant.service"),
		cfg:      cfg,
		repo:     repo,
		clients:  clients,
		consents: consents,
		sessions: sessions,
		recorder: recorder,
		clock:    clk,
		genID:    genID,
	}
}

func (s *Service) IssueCode(ctx context.Context, req domain.IssueCodeRequest) (*domain.IssueCodeResult, error) {
	if req.UserID == 0 || strings.TrimSpace(req.ClientID) == "" {
		return nil, fmt.Errorf("%w: client id and user id are required", domain.ErrInvalidRequest)
	}
	if len(req.Scopes) == 0 {
		return nil, fmt.Errorf("%w: scope is required", domain.ErrInvalidScope)
	}

	client, err := s.clients.Resolve(ctx, req.ClientID)
	if err != nil {
		if err == clientdomain.ErrClientNotFound {
			return nil, fmt.Errorf("%w: unknown client", domain.ErrInvalidRequest)
		}
		return nil, err
	}
	if !client.AllowsGrantType(clientdomain.GrantAuthorizationCode) {
		return nil, domain.ErrUnsupportedGrant
	}
	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, fmt.Errorf("%w: redirect_uri is not registered", domain.ErrInvalidRequest)
	}
	if !client.AllowsScopes(req.Scopes) {
		return nil, domain.ErrInvalidScope
	}

	consented, err := s.consents.HasConsented(ctx, client.ClientID, req.UserID, req.Scopes)
	if err != nil {
		return nil, err
	}
	if !consented {
		return nil, domain.ErrConsentRequired
	}

	if client.RequireProofKey && req.CodeChallenge == "" {
		return nil, domain.ErrProofKeyRequired
	}
	if req.CodeChallenge != "" && req.CodeChallengeMethod != "S256" {
		// Plain challenges defeat the point of the proof key.
		return nil, fmt.Errorf("%w: only S256 code challenges are supported", domain.ErrInvalidRequest)
	}

	raw, err := token.New(s.cfg.TokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.cfg.AuthCodeTTL)
	codeHash := token.Hash(raw)
	auth := &domain.Authorization{
		ID:                 uuid.NewString(),
		RegisteredClientID: client.ClientID,
		UserID:             req.UserID,
		GrantType:          string(clientdomain.GrantAuthorizationCode),
		Scopes:             req.Scopes,
		CodeValue:          &codeHash,
		CodeIssuedAt:       &now,
		CodeExpiresAt:      &expiresAt,
		CodeMetadata: map[string]interface{}{
			"redirect_uri":          req.RedirectURI,
			"code_challenge":        req.CodeChallenge,
			"code_challenge_method": req.CodeChallengeMethod,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, auth); err != nil {
		return nil, err
	}

	s.audit(ctx, req.UserID.String(), "grant.code_issued", true, "", client.ClientID, nil)
	return &domain.IssueCodeResult{Code: raw, ExpiresAt: expiresAt}, nil
}

func (s *Service) Exchange(ctx context.Context, req domain.ExchangeRequest) (*domain.TokenResponse, error) {
	if req.Client == nil || req.Code == "" {
		return nil, fmt.Errorf("%w: client and code are required", domain.ErrInvalidRequest)
	}

	auth, err := s.repo.FindByCodeHash(ctx, token.Hash(req.Code))
	if err != nil {
		if err == domain.ErrAuthorizationNotFound {
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}

	now := s.clock.Now()
	if reason := s.validateExchange(auth, req, now); reason != "" {
		// A failed validation burns the whole grant, not just the code.
		if err := s.repo.Revoke(ctx, auth.ID, now); err != nil {
			s.log.Warn("failed to revoke authorization", zap.Error(err))
		}
		s.audit(ctx, auth.UserID.String(), "grant.exchange", false, reason, auth.RegisteredClientID, nil)
		return nil, domain.ErrInvalidGrant
	}

	consumed, err := s.repo.ConsumeCode(ctx, auth.ID, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Second presentation of the same code. Kill the grant so tokens
		// minted by the first exchange stop working too.
		if err := s.repo.Revoke(ctx, auth.ID, now); err != nil {
			s.log.Warn("failed to revoke authorization", zap.Error(err))
		}
		s.audit(ctx, auth.UserID.String(), "grant.code_replay", false, "code_already_used", auth.RegisteredClientID, map[string]any{
			"severity": auditdomain.SeverityElevated,
		})
		return nil, domain.ErrInvalidGrant
	}
	// Keep the loaded row in step with the swap so the later save does not
	// clear the marker again.
	auth.CodeUsedAt = &now

	resp, _, err := s.issueTokens(ctx, auth, req.Client, now, 0, req.DeviceFingerprint, req.IPAddress, req.UserAgent)
	if err != nil {
		// The code is already burned. Revoke the grant so the client sees a
		// clean invalid_grant on retry instead of a replay verdict.
		if rerr := s.repo.Revoke(ctx, auth.ID, now); rerr != nil {
			s.log.Error("failed to revoke authorization", zap.Error(rerr))
		}
		s.audit(ctx, auth.UserID.String(), "grant.exchange", false, "issuance_failed", auth.RegisteredClientID, nil)
		return nil, err
	}

	s.audit(ctx, auth.UserID.String(), "grant.exchange", true, "", auth.RegisteredClientID, nil)
	return resp, nil
}

func (s *Service) validateExchange(auth *domain.Authorization, req domain.ExchangeRequest, now time.Time) string {
	if auth.RevokedAt != nil {
		return "authorization_revoked"
	}
	if auth.RegisteredClientID != req.Client.ClientID {
		return "client_mismatch"
	}
	if auth.CodeExpiresAt == nil || now.After(auth.CodeExpiresAt.Add(s.cfg.ClockSkew)) {
		return "code_expired"
	}

	registeredRedirect, _ := auth.CodeMetadata["redirect_uri"].(string)
	if registeredRedirect != strings.TrimSpace(req.RedirectURI) {
		return "redirect_uri_mismatch"
	}

	challenge, _ := auth.CodeMetadata["code_challenge"].(string)
	if req.Client.RequireProofKey && challenge == "" {
		return "proof_key_missing"
	}
	if challenge != "" {
		if req.CodeVerifier == "" {
			return "code_verifier_missing"
		}
		derived := token.S256Challenge(req.CodeVerifier)
		if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
			return "code_verifier_mismatch"
		}
	}
	return ""
}

func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (*domain.Introspection, error) {
	inactive := &domain.Introspection{Active: false}
	if raw == "" {
		return inactive, nil
	}

	auth, err := s.repo.FindByAccessTokenHash(ctx, token.Hash(raw))
	if err != nil {
		if err == domain.ErrAuthorizationNotFound {
			return inactive, nil
		}
		return nil, err
	}

	if auth.RevokedAt != nil || auth.AccessTokenExpiresAt == nil {
		return inactive, nil
	}
	if s.clock.Now().After(auth.AccessTokenExpiresAt.Add(s.cfg.ClockSkew)) {
		return inactive, nil
	}

	return &domain.Introspection{
		Active:    true,
		UserID:    auth.UserID,
		ClientID:  auth.RegisteredClientID,
		Scopes:    auth.Scopes,
		ExpiresAt: *auth.AccessTokenExpiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenResponse, error) {
	if req.Client == nil || req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: client and refresh token are required", domain.ErrInvalidRequest)
	}
	if !req.Client.AllowsGrantType(clientdomain.GrantRefreshToken) {
		return nil, domain.ErrUnsupportedGrant
	}

	record, err := s.repo.FindRefreshTokenByHash(ctx, token.Hash(req.RefreshToken))
	if err != nil {
		if err == domain.ErrAuthorizationNotFound {
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}
	if record.RegisteredClientID != req.Client.ClientID {
		return nil, domain.ErrInvalidGrant
	}

	now := s.clock.Now()
	if record.Status != domain.RefreshStatusActive {
		return nil, s.handleReplay(ctx, record, now)
	}
	if now.After(record.ExpiresAt.Add(s.cfg.ClockSkew)) {
		return nil, domain.ErrInvalidGrant
	}

	auth, err := s.repo.FindByID(ctx, record.AuthorizationID)
	if err != nil {
		return nil, err
	}
	if auth.RevokedAt != nil {
		return nil, domain.ErrInvalidGrant
	}

	resp, successor, err := s.issueTokens(ctx, auth, req.Client, now, record.RotationCount+1, req.DeviceFingerprint, req.IPAddress, req.UserAgent)
	if err != nil {
		return nil, err
	}

	rotated, err := s.repo.RotateRefreshToken(ctx, record.ID, successor.ID, now)
	if err != nil {
		// Leaving the successor ACTIVE next to the original would mean two
		// live tokens for one grant.
		if rerr := s.repo.RevokeRefreshToken(ctx, successor.ID, now); rerr != nil {
			s.log.Error("failed to revoke successor token", zap.Error(rerr))
		}
		return nil, err
	}
	if !rotated {
		// Someone rotated the record between our read and the swap, which
		// means this token was presented twice.
		if err := s.repo.RevokeRefreshToken(ctx, successor.ID, now); err != nil {
			s.log.Warn("failed to revoke successor token", zap.Error(err))
		}
		return nil, s.handleReplay(ctx, record, now)
	}

	s.audit(ctx, record.UserID.String(), "grant.refreshed", true, "", record.RegisteredClientID, nil)
	return resp, nil
}

// handleReplay runs the cascade for a rotated or revoked refresh token
// presented again: every refresh token and session of the (user, client)
// pair is revoked and the grant itself is burned.
func (s *Service) handleReplay(ctx context.Context, record *domain.RefreshTokenRecord, now time.Time) error {
	if _, err := s.repo.RevokeRefreshTokens(ctx, record.UserID, record.RegisteredClientID, now); err != nil {
		s.log.Error("failed to revoke refresh token family", zap.Error(err))
	}
	if err := s.repo.Revoke(ctx, record.AuthorizationID, now); err != nil {
		s.log.Error("failed to revoke authorization", zap.Error(err))
	}
	if _, err := s.sessions.InvalidateForUserAndClient(ctx, record.UserID, record.RegisteredClientID); err != nil {
		s.log.Error("failed to invalidate sessions", zap.Error(err))
	}

	s.audit(ctx, record.UserID.String(), "grant.refresh_replay", false, "token_reuse", record.RegisteredClientID, map[string]any{
		"severity":       auditdomain.SeverityElevated,
		"rotation_count": record.RotationCount,
	})
	return domain.ErrReplayDetected
}

func (s *Service) RevokeRefreshToken(ctx context.Context, client *clientdomain.RegisteredClient, raw string) error {
	if client == nil || raw == "" {
		return fmt.Errorf("%w: client and token are required", domain.ErrInvalidRequest)
	}

	record, err := s.repo.FindRefreshTokenByHash(ctx, token.Hash(raw))
	if err != nil {
		if err == domain.ErrAuthorizationNotFound {
			// Revoking an unknown token succeeds, there is nothing to leak.
			return nil
		}
		return err
	}
	if record.RegisteredClientID != client.ClientID {
		return domain.ErrInvalidGrant
	}

	now := s.clock.Now()
	if err := s.repo.RevokeRefreshToken(ctx, record.ID, now); err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, record.AuthorizationID, now); err != nil {
		return err
	}

	s.audit(ctx, record.UserID.String(), "grant.revoked", true, "", record.RegisteredClientID, nil)
	return nil
}

// issueTokens mints a fresh access token, refresh token record and, for
// openid scoped grants, an ID token, then persists the new state. The
// returned record is the ACTIVE refresh token row, nil for clients without
// the refresh grant.
func (s *Service) issueTokens(ctx context.Context, auth *domain.Authorization, client *clientdomain.RegisteredClient, now time.Time, rotation int, fingerprint, ip, ua *string) (*domain.TokenResponse, *domain.RefreshTokenRecord, error) {
	accessRaw, err := token.New(s.cfg.TokenBytes)
	if err != nil {
		return nil, nil, err
	}
	accessHash := token.Hash(accessRaw)
	accessExpires := now.Add(s.cfg.AccessTokenTTL)

	auth.AccessTokenValue = &accessHash
	auth.AccessTokenIssuedAt = &now
	auth.AccessTokenExpiresAt = &accessExpires
	auth.UpdatedAt = now

	resp := &domain.TokenResponse{
		AccessToken: accessRaw,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
		Scopes:      auth.Scopes,
	}

	var record *domain.RefreshTokenRecord
	if client.AllowsGrantType(clientdomain.GrantRefreshToken) {
		refreshRaw, err := token.New(s.cfg.TokenBytes)
		if err != nil {
			return nil, nil, err
		}
		refreshHash := token.Hash(refreshRaw)
		refreshExpires := now.Add(s.cfg.RefreshTokenTTL)

		record = &domain.RefreshTokenRecord{
			ID:                 s.genID.Generate(),
			AuthorizationID:    auth.ID,
			RegisteredClientID: auth.RegisteredClientID,
			UserID:             auth.UserID,
			TokenHash:          refreshHash,
			Status:             domain.RefreshStatusActive,
			RotationCount:      rotation,
			DeviceFingerprint:  fingerprint,
			IPAddress:          ip,
			UserAgent:          ua,
			IssuedAt:           now,
			ExpiresAt:          refreshExpires,
			CreatedAt:          now,
		}
		if err := s.repo.CreateRefreshToken(ctx, record); err != nil {
			return nil, nil, err
		}

		auth.RefreshTokenValue = &refreshHash
		auth.RefreshTokenIssuedAt = &now
		auth.RefreshTokenExpiresAt = &refreshExpires
		resp.RefreshToken = refreshRaw
	}

	if hasScope(auth.Scopes, "openid") {
		idRaw, err := token.New(s.cfg.TokenBytes)
		if err != nil {
			return nil, nil, err
		}
		idHash := token.Hash(idRaw)
		idExpires := now.Add(s.cfg.IDTokenTTL)

		auth.IDTokenValue = &idHash
		auth.IDTokenIssuedAt = &now
		auth.IDTokenExpiresAt = &idExpires
		auth.IDTokenMetadata = map[string]interface{}{
			"sub": auth.UserID.String(),
			"aud": auth.RegisteredClientID,
		}
		resp.IDToken = idRaw
	}

	if err := s.repo.Update(ctx, auth); err != nil {
		if record != nil {
			if rerr := s.repo.RevokeRefreshToken(ctx, record.ID, now); rerr != nil {
				s.log.Error("failed to revoke refresh token", zap.Error(rerr))
			}
		}
		return nil, nil, err
	}
	return resp, record, nil
}

func (s *Service) audit(ctx context.Context, actor, action string, success bool, reason, clientID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["client_id"] = clientID
	s.recorder.Record(ctx, auditdomain.Entry{
		Actor:    actor,
		Action:   action,
		Success:  success,
		Error:    reason,
		Metadata: metadata,
	})
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

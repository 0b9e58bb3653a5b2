package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	clientrepository "github.com/smallbiznis/identra/internal/client/repository"
	clientservice "github.com/smallbiznis/identra/internal/client/service"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	consentrepository "github.com/smallbiznis/identra/internal/consent/repository"
	consentservice "github.com/smallbiznis/identra/internal/consent/service"
	"github.com/smallbiznis/identra/internal/grant/domain"
	"github.com/smallbiznis/identra/internal/grant/repository"
	"github.com/smallbiznis/identra/internal/grant/token"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	sessionrepository "github.com/smallbiznis/identra/internal/session/repository"
	sessionservice "github.com/smallbiznis/identra/internal/session/service"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureRecorder struct {
	entries []auditdomain.Entry
}

func (c *captureRecorder) Record(_ context.Context, entry auditdomain.Entry) {
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) find(action string) *auditdomain.Entry {
	for i := range c.entries {
		if c.entries[i].Action == action {
			return &c.entries[i]
		}
	}
	return nil
}

// faultRepo lets a test make selected repository calls fail.
type faultRepo struct {
	domain.Repository
	createRefreshErr error
	rotateErr        error
}

func (r *faultRepo) CreateRefreshToken(ctx context.Context, record *domain.RefreshTokenRecord) error {
	if r.createRefreshErr != nil {
		return r.createRefreshErr
	}
	return r.Repository.CreateRefreshToken(ctx, record)
}

func (r *faultRepo) RotateRefreshToken(ctx context.Context, id, replacedBy snowflake.ID, at time.Time) (bool, error) {
	if r.rotateErr != nil {
		return false, r.rotateErr
	}
	return r.Repository.RotateRefreshToken(ctx, id, replacedBy, at)
}

type fixture struct {
	conn     *gorm.DB
	repo     *faultRepo
	grants   domain.Service
	clients  clientdomain.Registry
	consents consentdomain.Ledger
	sessions sessiondomain.Manager
	clock    *clock.FakeClock
	recorder *captureRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = conn.AutoMigrate(
		&domain.Authorization{},
		&domain.RefreshTokenRecord{},
		&clientdomain.RegisteredClient{},
		&consentdomain.Consent{},
		&sessiondomain.Session{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		AuthCodeTTL:     5 * time.Minute,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		IDTokenTTL:      time.Hour,
		SessionTTL:      7 * 24 * time.Hour,
		ClockSkew:       5 * time.Second,
		TokenBytes:      32,
	}

	recorder := &captureRecorder{}
	repo := &faultRepo{Repository: repository.New(conn)}
	clients := clientservice.New(clientrepository.New(conn), clk, zap.NewNop())
	consents := consentservice.New(zap.NewNop(), consentrepository.New(conn), clk)
	sessions := sessionservice.New(zap.NewNop(), cfg, sessionrepository.New(conn), clk)
	grants := New(zap.NewNop(), cfg, repo, clients, consents, sessions, recorder, clk, node)

	return &fixture{
		conn:     conn,
		repo:     repo,
		grants:   grants,
		clients:  clients,
		consents: consents,
		sessions: sessions,
		clock:    clk,
		recorder: recorder,
	}
}

func (f *fixture) registerClient(t *testing.T) *clientdomain.RegisteredClient {
	t.Helper()
	client, err := f.clients.Create(context.Background(), clientdomain.CreateClientRequest{
		ClientID:     "admin-client",
		ClientSecret: "s3cret",
		AuthMethods:  []clientdomain.AuthMethod{clientdomain.AuthMethodSecretBasic},
		GrantTypes:   []clientdomain.GrantType{clientdomain.GrantAuthorizationCode, clientdomain.GrantRefreshToken},
		RedirectURIs: []string{"http://localhost:8080/callback"},
		Scopes:       []string{"read", "write", "openid"},
	})
	if err != nil {
		t.Fatalf("register client: %v", err)
	}
	return client
}

func (f *fixture) consent(t *testing.T, userID snowflake.ID, scopes []string) {
	t.Helper()
	if _, err := f.consents.Grant(context.Background(), "admin-client", userID, scopes); err != nil {
		t.Fatalf("grant consent: %v", err)
	}
}

func (f *fixture) issueCode(t *testing.T, userID snowflake.ID, scopes []string) string {
	t.Helper()
	result, err := f.grants.IssueCode(context.Background(), domain.IssueCodeRequest{
		ClientID:    "admin-client",
		UserID:      userID,
		RedirectURI: "http://localhost:8080/callback",
		Scopes:      scopes,
	})
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	return result.Code
}

func TestCodeExchangeIssuesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read", "openid"})
	code := f.issueCode(t, 100, []string{"read", "openid"})

	resp, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.IDToken == "" {
		t.Fatalf("expected access, refresh and id tokens, got %+v", resp)
	}
	if resp.TokenType != "Bearer" {
		t.Fatalf("token type = %q, want Bearer", resp.TokenType)
	}

	intro, err := f.grants.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !intro.Active || intro.UserID != 100 || intro.ClientID != "admin-client" {
		t.Fatalf("unexpected introspection: %+v", intro)
	}
}

func TestCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	first, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("first exchange: %v", err)
	}

	_, err = f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("second exchange: got %v, want ErrInvalidGrant", err)
	}

	// Replaying the code burns the grant, so tokens from the first
	// exchange stop working.
	intro, err := f.grants.ValidateAccessToken(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if intro.Active {
		t.Fatal("access token must be inactive after code replay")
	}
	if entry := f.recorder.find("grant.code_replay"); entry == nil {
		t.Fatal("expected a code replay audit entry")
	} else if entry.Metadata["severity"] != auditdomain.SeverityElevated {
		t.Fatalf("replay entry severity = %v, want elevated", entry.Metadata["severity"])
	}
}

func TestExpiredCodeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	f.clock.Advance(5*time.Minute + 6*time.Second)
	_, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}
}

func TestRedirectMismatchBurnsGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	_, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/evil",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("got %v, want ErrInvalidGrant", err)
	}

	// The validation failure revoked the grant, a retry with the right
	// redirect no longer helps.
	_, err = f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("retry: got %v, want ErrInvalidGrant", err)
	}
}

func TestConsentRequired(t *testing.T) {
	f := newFixture(t)
	f.registerClient(t)

	_, err := f.grants.IssueCode(context.Background(), domain.IssueCodeRequest{
		ClientID:    "admin-client",
		UserID:      100,
		RedirectURI: "http://localhost:8080/callback",
		Scopes:      []string{"read"},
	})
	if err != domain.ErrConsentRequired {
		t.Fatalf("got %v, want ErrConsentRequired", err)
	}
}

func TestProofKeyFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.clients.Create(ctx, clientdomain.CreateClientRequest{
		ClientID:     "spa-client",
		AuthMethods:  []clientdomain.AuthMethod{clientdomain.AuthMethodNone},
		GrantTypes:   []clientdomain.GrantType{clientdomain.GrantAuthorizationCode},
		RedirectURIs: []string{"http://localhost:3000/callback"},
		Scopes:       []string{"read"},
	})
	if err != nil {
		t.Fatalf("register public client: %v", err)
	}
	if _, err := f.consents.Grant(ctx, "spa-client", 200, []string{"read"}); err != nil {
		t.Fatalf("grant consent: %v", err)
	}

	// No challenge at all is refused outright for proof key clients.
	_, err = f.grants.IssueCode(ctx, domain.IssueCodeRequest{
		ClientID:    "spa-client",
		UserID:      200,
		RedirectURI: "http://localhost:3000/callback",
		Scopes:      []string{"read"},
	})
	if err != domain.ErrProofKeyRequired {
		t.Fatalf("got %v, want ErrProofKeyRequired", err)
	}

	verifier := "correct-horse-battery-staple-correct-horse"
	result, err := f.grants.IssueCode(ctx, domain.IssueCodeRequest{
		ClientID:            "spa-client",
		UserID:              200,
		RedirectURI:         "http://localhost:3000/callback",
		Scopes:              []string{"read"},
		CodeChallenge:       token.S256Challenge(verifier),
		CodeChallengeMethod: "S256",
	})
	if err != nil {
		t.Fatalf("issue code with challenge: %v", err)
	}

	_, err = f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:       client,
		Code:         result.Code,
		RedirectURI:  "http://localhost:3000/callback",
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("wrong verifier: got %v, want ErrInvalidGrant", err)
	}

	// The bad verifier burned the grant, even the right one fails now.
	_, err = f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:       client,
		Code:         result.Code,
		RedirectURI:  "http://localhost:3000/callback",
		CodeVerifier: verifier,
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("retry after burn: got %v, want ErrInvalidGrant", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	initial, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	second, err := f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: initial.RefreshToken})
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if second.RefreshToken == initial.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	var original domain.RefreshTokenRecord
	if err := f.conn.Where("rotation_count = ?", 0).First(&original).Error; err != nil {
		t.Fatalf("load original record: %v", err)
	}
	if original.Status != domain.RefreshStatusRotated {
		t.Fatalf("original status = %q, want %q", original.Status, domain.RefreshStatusRotated)
	}

	third, err := f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: second.RefreshToken})
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if third.RefreshToken == second.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	var active domain.RefreshTokenRecord
	if err := f.conn.Where("status = ?", domain.RefreshStatusActive).First(&active).Error; err != nil {
		t.Fatalf("load active record: %v", err)
	}
	if active.RotationCount != 2 {
		t.Fatalf("rotation count = %d, want 2", active.RotationCount)
	}

	intro, err := f.grants.ValidateAccessToken(ctx, third.AccessToken)
	if err != nil || !intro.Active {
		t.Fatalf("latest access token should be active, intro=%+v err=%v", intro, err)
	}
}

func TestRefreshReplayCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	initial, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	clientID := "admin-client"
	session, err := f.sessions.Create(ctx, sessiondomain.CreateSessionRequest{UserID: 100, ClientID: &clientID})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rotated, err := f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: initial.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Presenting the rotated token again is replay.
	_, err = f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: initial.RefreshToken})
	if err != domain.ErrReplayDetected {
		t.Fatalf("got %v, want ErrReplayDetected", err)
	}

	entry := f.recorder.find("grant.refresh_replay")
	if entry == nil {
		t.Fatal("expected a refresh replay audit entry")
	}
	if entry.Metadata["severity"] != auditdomain.SeverityElevated {
		t.Fatalf("replay entry severity = %v, want elevated", entry.Metadata["severity"])
	}

	// The cascade revokes the whole family and the pair's sessions.
	if _, err := f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: rotated.RefreshToken}); err == nil {
		t.Fatal("successor token must be unusable after replay")
	}
	if _, err := f.sessions.Touch(ctx, session.ID); err != sessiondomain.ErrSessionNotFound {
		t.Fatalf("session should be gone, got %v", err)
	}
}

func TestExchangeIssuanceFailureRevokesGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	boom := errors.New("storage offline")
	f.repo.createRefreshErr = boom
	_, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("exchange: got %v, want injected error", err)
	}

	// The code was consumed before issuance failed, so the grant must not
	// linger half-issued.
	var auth domain.Authorization
	if err := f.conn.First(&auth).Error; err != nil {
		t.Fatalf("load authorization: %v", err)
	}
	if auth.CodeUsedAt == nil {
		t.Fatal("code should be consumed")
	}
	if auth.RevokedAt == nil {
		t.Fatal("grant must be revoked when issuance fails after consuming the code")
	}

	// The client's retry reads as a plain invalid grant, not as replay.
	f.repo.createRefreshErr = nil
	_, err = f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != domain.ErrInvalidGrant {
		t.Fatalf("retry: got %v, want ErrInvalidGrant", err)
	}
	if f.recorder.find("grant.code_replay") != nil {
		t.Fatal("retry after failed issuance must not count as replay")
	}
}

func TestRefreshRotateFailureRevokesSuccessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	initial, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	boom := errors.New("storage offline")
	f.repo.rotateErr = boom
	_, err = f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: initial.RefreshToken})
	if !errors.Is(err, boom) {
		t.Fatalf("refresh: got %v, want injected error", err)
	}

	// The half-minted successor must not stay spendable next to the
	// original token.
	var count int64
	if err := f.conn.Model(&domain.RefreshTokenRecord{}).
		Where("status = ?", domain.RefreshStatusActive).
		Count(&count).Error; err != nil {
		t.Fatalf("count active records: %v", err)
	}
	if count != 1 {
		t.Fatalf("active refresh records = %d, want 1", count)
	}

	// Once the store recovers the original token still rotates normally.
	f.repo.rotateErr = nil
	if _, err := f.grants.Refresh(ctx, domain.RefreshRequest{Client: client, RefreshToken: initial.RefreshToken}); err != nil {
		t.Fatalf("refresh after recovery: %v", err)
	}
}

func TestExpiredAccessTokenInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	resp, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	f.clock.Advance(time.Hour + 6*time.Second)
	intro, err := f.grants.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if intro.Active {
		t.Fatal("expired access token must be inactive")
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.registerClient(t)
	f.consent(t, 100, []string{"read"})
	code := f.issueCode(t, 100, []string{"read"})

	resp, err := f.grants.Exchange(ctx, domain.ExchangeRequest{
		Client:      client,
		Code:        code,
		RedirectURI: "http://localhost:8080/callback",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if err := f.grants.RevokeRefreshToken(ctx, client, resp.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.grants.RevokeRefreshToken(ctx, client, "unknown-token"); err != nil {
		t.Fatalf("revoking unknown token must succeed, got %v", err)
	}

	intro, err := f.grants.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if intro.Active {
		t.Fatal("access token must be inactive after revocation")
	}
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
)

// Service drives the grant lifecycle: issue a code, exchange it for tokens,
// validate and refresh them.
type Service interface {
	IssueCode(ctx context.Context, req IssueCodeRequest) (*IssueCodeResult, error)
	Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error)
	// ValidateAccessToken is read-only, it never advances grant state.
	ValidateAccessToken(ctx context.Context, token string) (*Introspection, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	RevokeRefreshToken(ctx context.Context, client *clientdomain.RegisteredClient, token string) error
}

type IssueCodeRequest struct {
	ClientID            string
	UserID              snowflake.ID
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	IPAddress           *string
	UserAgent           *string
}

type IssueCodeResult struct {
	Code      string
	ExpiresAt time.Time
}

// ExchangeRequest carries an already authenticated client; the transport
// layer resolves credentials before calling in.
type ExchangeRequest struct {
	Client            *clientdomain.RegisteredClient
	Code              string
	RedirectURI       string
	CodeVerifier      string
	DeviceFingerprint *string
	IPAddress         *string
	UserAgent         *string
}

type RefreshRequest struct {
	Client            *clientdomain.RegisteredClient
	RefreshToken      string
	DeviceFingerprint *string
	IPAddress         *string
	UserAgent         *string
}

type TokenResponse struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	IDToken      string
	Scopes       []string
}

type Introspection struct {
	Active    bool
	UserID    snowflake.ID
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
}

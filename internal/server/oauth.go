package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
)

// Authorize starts the code flow for a logged-in user. On success the
// browser is sent back to the client with a fresh authorization code.
func (s *Server) Authorize(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if rt := c.Query("response_type"); rt != "code" {
		oauthError(c, http.StatusBadRequest, "unsupported_response_type", "only response_type=code is supported")
		return
	}

	scopes := strings.Fields(c.Query("scope"))
	result, err := s.grants.IssueCode(c.Request.Context(), grantdomain.IssueCodeRequest{
		ClientID:            c.Query("client_id"),
		UserID:              session.UserID,
		RedirectURI:         c.Query("redirect_uri"),
		Scopes:              scopes,
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
		IPAddress:           optional(c.ClientIP()),
		UserAgent:           optional(c.Request.UserAgent()),
	})
	if err != nil {
		if errors.Is(err, grantdomain.ErrConsentRequired) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":           "consent_required",
				"client_id":       c.Query("client_id"),
				"requested_scope": scopes,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	redirect, err := url.Parse(c.Query("redirect_uri"))
	if err != nil {
		AbortWithError(c, grantdomain.ErrInvalidRequest)
		return
	}
	query := redirect.Query()
	query.Set("code", result.Code)
	if state := c.Query("state"); state != "" {
		query.Set("state", state)
	}
	redirect.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirect.String())
}

type consentRequest struct {
	ClientID string   `json:"client_id" binding:"required"`
	Scopes   []string `json:"scopes" binding:"required"`
}

func (s *Server) GrantConsent(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, consentdomain.ErrInvalidRequest)
		return
	}

	// Consent only sticks for scopes the client is registered for.
	client, err := s.clients.Resolve(c.Request.Context(), req.ClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !client.AllowsScopes(req.Scopes) {
		AbortWithError(c, grantdomain.ErrInvalidScope)
		return
	}

	consent, err := s.consents.Grant(c.Request.Context(), client.ClientID, session.UserID, req.Scopes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client_id": consent.RegisteredClientID,
		"scopes":    consent.Scopes,
	})
}

func (s *Server) Token(c *gin.Context) {
	client, ok := s.authenticateClient(c)
	if !ok {
		return
	}

	switch c.PostForm("grant_type") {
	case "authorization_code":
		s.exchangeCode(c, client)
	case "refresh_token":
		s.refreshToken(c, client)
	default:
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "grant type not supported")
	}
}

func (s *Server) exchangeCode(c *gin.Context, client *clientdomain.RegisteredClient) {
	resp, err := s.grants.Exchange(c.Request.Context(), grantdomain.ExchangeRequest{
		Client:            client,
		Code:              c.PostForm("code"),
		RedirectURI:       c.PostForm("redirect_uri"),
		CodeVerifier:      c.PostForm("code_verifier"),
		DeviceFingerprint: optional(c.PostForm("device_fingerprint")),
		IPAddress:         optional(c.ClientIP()),
		UserAgent:         optional(c.Request.UserAgent()),
	})
	if err != nil {
		s.writeTokenError(c, err)
		return
	}

	tokensIssued.WithLabelValues("authorization_code").Inc()
	s.writeTokenResponse(c, resp)
}

func (s *Server) refreshToken(c *gin.Context, client *clientdomain.RegisteredClient) {
	resp, err := s.grants.Refresh(c.Request.Context(), grantdomain.RefreshRequest{
		Client:            client,
		RefreshToken:      c.PostForm("refresh_token"),
		DeviceFingerprint: optional(c.PostForm("device_fingerprint")),
		IPAddress:         optional(c.ClientIP()),
		UserAgent:         optional(c.Request.UserAgent()),
	})
	if err != nil {
		s.writeTokenError(c, err)
		return
	}

	tokensIssued.WithLabelValues("refresh_token").Inc()
	s.writeTokenResponse(c, resp)
}

func (s *Server) writeTokenResponse(c *gin.Context, resp *grantdomain.TokenResponse) {
	body := gin.H{
		"access_token": resp.AccessToken,
		"token_type":   resp.TokenType,
		"expires_in":   resp.ExpiresIn,
		"scope":        strings.Join(resp.Scopes, " "),
	}
	if resp.RefreshToken != "" {
		body["refresh_token"] = resp.RefreshToken
	}
	if resp.IDToken != "" {
		body["id_token"] = resp.IDToken
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) writeTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grantdomain.ErrReplayDetected):
		replaysDetected.Inc()
		oauthError(c, http.StatusBadRequest, "invalid_grant", "token has been revoked")
	case errors.Is(err, grantdomain.ErrInvalidGrant):
		oauthError(c, http.StatusBadRequest, "invalid_grant", "grant is invalid or expired")
	case errors.Is(err, grantdomain.ErrUnsupportedGrant):
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "grant type not allowed for this client")
	case errors.Is(err, grantdomain.ErrInvalidRequest):
		oauthError(c, http.StatusBadRequest, "invalid_request", "request is malformed")
	default:
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (s *Server) Introspect(c *gin.Context) {
	if _, ok := s.authenticateClient(c); !ok {
		return
	}

	intro, err := s.grants.ValidateAccessToken(c.Request.Context(), c.PostForm("token"))
	if err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !intro.Active {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"sub":       intro.UserID.String(),
		"client_id": intro.ClientID,
		"scope":     strings.Join(intro.Scopes, " "),
		"exp":       intro.ExpiresAt.Unix(),
	})
}

func (s *Server) Revoke(c *gin.Context) {
	client, ok := s.authenticateClient(c)
	if !ok {
		return
	}

	if err := s.grants.RevokeRefreshToken(c.Request.Context(), client, c.PostForm("token")); err != nil {
		s.writeTokenError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// authenticateClient resolves client credentials from the Authorization
// header or the form body. It writes the error response itself so token
// endpoint handlers can bail with a plain return.
func (s *Server) authenticateClient(c *gin.Context) (*clientdomain.RegisteredClient, bool) {
	var (
		clientID string
		secret   string
		method   clientdomain.AuthMethod
	)

	if basicID, basicSecret, ok := c.Request.BasicAuth(); ok {
		clientID, secret = basicID, basicSecret
		method = clientdomain.AuthMethodSecretBasic
	} else if formSecret := c.PostForm("client_secret"); formSecret != "" {
		clientID, secret = c.PostForm("client_id"), formSecret
		method = clientdomain.AuthMethodSecretPost
	} else {
		clientID = c.PostForm("client_id")
		method = clientdomain.AuthMethodNone
	}

	client, err := s.clients.Authenticate(c.Request.Context(), clientID, secret, method)
	if err != nil {
		oauthError(c, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return nil, false
	}
	return client, true
}

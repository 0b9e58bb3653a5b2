package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, creddomain.ErrBadPassword),
		errors.Is(err, creddomain.ErrNotFound),
		errors.Is(err, sessiondomain.ErrSessionNotFound),
		errors.Is(err, sessiondomain.ErrSessionExpired),
		errors.Is(err, clientdomain.ErrInvalidClient):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, creddomain.ErrAccountLocked),
		errors.Is(err, creddomain.ErrAccountDisabled),
		errors.Is(err, grantdomain.ErrConsentRequired):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case errors.Is(err, userdomain.ErrUserExists),
		errors.Is(err, clientdomain.ErrClientExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func forbiddenMessage(err error) string {
	switch {
	case errors.Is(err, creddomain.ErrAccountLocked):
		return "account locked"
	case errors.Is(err, creddomain.ErrAccountDisabled):
		return "account disabled"
	case errors.Is(err, grantdomain.ErrConsentRequired):
		return "consent required"
	default:
		return "forbidden"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, clientdomain.ErrClientNotFound),
		errors.Is(err, consentdomain.ErrConsentNotFound),
		errors.Is(err, grantdomain.ErrAuthorizationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidRequest),
		errors.Is(err, creddomain.ErrInvalidRequest),
		errors.Is(err, creddomain.ErrTokenInvalid),
		errors.Is(err, clientdomain.ErrInvalidRequest),
		errors.Is(err, consentdomain.ErrInvalidRequest),
		errors.Is(err, sessiondomain.ErrInvalidRequest),
		errors.Is(err, grantdomain.ErrInvalidRequest),
		errors.Is(err, grantdomain.ErrInvalidScope),
		errors.Is(err, grantdomain.ErrProofKeyRequired):
		return true
	default:
		return false
	}
}

// oauthError writes the RFC 6749 error shape used on the token endpoint.
func oauthError(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
)

// GetConsent shows the scopes the caller has approved for a client.
func (s *Server) GetConsent(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	clientID := c.Param("client_id")
	scopes, err := s.consents.Approved(c.Request.Context(), clientID, session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(scopes) == 0 {
		AbortWithError(c, consentdomain.ErrConsentNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id": clientID,
		"scopes":    scopes,
	})
}

// RevokeConsent withdraws the caller's consent for a client. Grants already
// issued keep running until they expire or are revoked on the token side.
func (s *Server) RevokeConsent(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.consents.Revoke(c.Request.Context(), c.Param("client_id"), session.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

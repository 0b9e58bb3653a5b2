package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, creddomain.ErrInvalidRequest)
		return
	}

	result, err := s.credsvc.Verify(c.Request.Context(), creddomain.VerifyRequest{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		loginAttempts.WithLabelValues("failure").Inc()
		AbortWithError(c, err)
		return
	}

	session, err := s.sessions.Create(c.Request.Context(), sessiondomain.CreateSessionRequest{
		UserID:    result.UserID,
		IPAddress: optional(c.ClientIP()),
		UserAgent: optional(c.Request.UserAgent()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	c.SetCookie(sessionCookie, session.ID, int(s.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"user_id":  result.UserID.String(),
		"username": result.Username,
	})
}

func (s *Server) Logout(c *gin.Context) {
	id, err := c.Cookie(sessionCookie)
	if err == nil && id != "" {
		if err := s.sessions.Invalidate(c.Request.Context(), id); err != nil &&
			!errors.Is(err, sessiondomain.ErrSessionNotFound) {
			s.log.Warn("failed to invalidate session", zap.Error(err))
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	Current     string `json:"current_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) ChangePassword(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, creddomain.ErrInvalidRequest)
		return
	}

	err := s.credsvc.ChangePassword(c.Request.Context(), creddomain.ChangePasswordRequest{
		UserID:      session.UserID,
		Current:     req.Current,
		NewPassword: req.NewPassword,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type forgotRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) Forgot(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, creddomain.ErrInvalidRequest)
		return
	}

	// The response never reveals whether the account exists.
	user, err := s.usersvc.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			c.Status(http.StatusAccepted)
			return
		}
		AbortWithError(c, err)
		return
	}

	token, err := s.credsvc.CreateResetToken(c.Request.Context(), user.ID, c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"reset_token": token})
}

type resetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, creddomain.ErrInvalidRequest)
		return
	}

	userID, err := s.credsvc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// A reset usually means the old password leaked. Log everyone out.
	if _, err := s.sessions.InvalidateAllForUser(c.Request.Context(), userID); err != nil {
		s.log.Warn("failed to invalidate sessions", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

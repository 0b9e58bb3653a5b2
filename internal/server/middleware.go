package server

import (
	"time"

	"github.com/gin-gonic/gin"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	"github.com/smallbiznis/identra/internal/user/role"
	"go.uber.org/zap"
)

const sessionCookie = "identra_session"

const (
	ctxSession = "ctx.session"
	ctxUserID  = "ctx.user_id"
)

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// WebAuthRequired resolves the session cookie and stores the session on the
// request context. Touching the session slides its last access forward.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.sessions.Touch(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(ctxSession, session)
		c.Set(ctxUserID, session.UserID)
		c.Next()
	}
}

// RequireAdmin gates admin routes on the caller's global role.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		if session == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.usersvc.GetUser(c.Request.Context(), session.UserID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !role.Has(user.Role, role.CapabilityClientManage) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.loginLimiter.AllowLogin(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("login throttle check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) TokenRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := s.loginLimiter.AllowToken(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("token throttle check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *sessiondomain.Session {
	value, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	session, _ := value.(*sessiondomain.Session)
	return session
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

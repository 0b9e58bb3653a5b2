package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/identra/internal/audit"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	"github.com/smallbiznis/identra/internal/client"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	"github.com/smallbiznis/identra/internal/consent"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	"github.com/smallbiznis/identra/internal/credential"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	"github.com/smallbiznis/identra/internal/grant"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
	"github.com/smallbiznis/identra/internal/migration"
	"github.com/smallbiznis/identra/internal/ratelimit"
	"github.com/smallbiznis/identra/internal/scheduler"
	"github.com/smallbiznis/identra/internal/session"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	"github.com/smallbiznis/identra/internal/user"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	fx.Provide(registerGin),
	audit.Module,
	user.Module,
	credential.Module,
	client.Module,
	consent.Module,
	grant.Module,
	session.Module,
	ratelimit.Module,
	migration.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	usersvc       userdomain.Service
	credsvc       creddomain.Service
	clients       clientdomain.Registry
	consents      consentdomain.Ledger
	grants        grantdomain.Service
	sessions      sessiondomain.Manager
	auditRepo     auditdomain.Repository
	loginLimiter  *ratelimit.LoginLimiter
	genID         *snowflake.Node
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	UserSvc      userdomain.Service
	CredSvc      creddomain.Service
	Clients      clientdomain.Registry
	Consents     consentdomain.Ledger
	Grants       grantdomain.Service
	Sessions     sessiondomain.Manager
	AuditRepo    auditdomain.Repository
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	GenID        *snowflake.Node
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("server"),
		usersvc:      p.UserSvc,
		credsvc:      p.CredSvc,
		clients:      p.Clients,
		consents:     p.Consents,
		grants:       p.Grants,
		sessions:     p.Sessions,
		auditRepo:    p.AuditRepo,
		loginLimiter: p.LoginLimiter,
		genID:        p.GenID,
	}

	svc.registerUserRoutes()
	svc.registerAuthRoutes()
	svc.registerOAuthRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUserRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/users", s.Register)
	v1.POST("/users/verify", s.VerifyEmail)
	v1.GET("/users/me", s.WebAuthRequired(), s.Me)
	v1.DELETE("/users/me", s.WebAuthRequired(), s.DeleteMe)

	v1.GET("/consents/:client_id", s.WebAuthRequired(), s.GetConsent)
	v1.DELETE("/consents/:client_id", s.WebAuthRequired(), s.RevokeConsent)
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/v1/auth")

	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/password", s.WebAuthRequired(), s.ChangePassword)
	auth.POST("/forgot", s.Forgot)
	auth.POST("/reset", s.ResetPassword)
}

func (s *Server) registerOAuthRoutes() {
	oauth := s.engine.Group("/oauth2")

	oauth.GET("/authorize", s.WebAuthRequired(), s.Authorize)
	oauth.POST("/consent", s.WebAuthRequired(), s.GrantConsent)
	oauth.POST("/token", s.TokenRateLimit(), s.Token)
	oauth.POST("/introspect", s.Introspect)
	oauth.POST("/revoke", s.Revoke)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.Use(s.WebAuthRequired())
	admin.Use(s.RequireAdmin())

	admin.POST("/clients", s.CreateClient)
	admin.GET("/clients/:client_id", s.GetClient)
	admin.GET("/audit-logs", s.ListAuditLogs)
}

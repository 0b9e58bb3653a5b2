package migration

import (
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
	"github.com/smallbiznis/identra/internal/config"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql are dev conveniences, the generated schema is
		// good enough there.
		return conn.AutoMigrate(
			&userdomain.User{},
			&creddomain.Credential{},
			&creddomain.ResetToken{},
			&creddomain.VerificationToken{},
			&clientdomain.RegisteredClient{},
			&consentdomain.Consent{},
			&grantdomain.Authorization{},
			&grantdomain.RefreshTokenRecord{},
			&sessiondomain.Session{},
			&auditdomain.AuditLog{},
		)
	}),
)

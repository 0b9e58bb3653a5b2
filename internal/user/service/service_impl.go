package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	consentdomain "github.com/smallbiznis/identra/internal/consent/domain"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	"github.com/smallbiznis/identra/internal/credential/password"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	"github.com/smallbiznis/identra/internal/user/domain"
	"github.com/smallbiznis/identra/internal/user/role"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	db       *gorm.DB
	repo     domain.Repository
	creds    creddomain.Repository
	recorder auditdomain.Recorder
	clock    clock.Clock
	genID    *snowflake.Node
}

func New(log *zap.Logger, cfg config.Config, conn *gorm.DB, repo domain.Repository, creds creddomain.Repository, recorder auditdomain.Recorder, clk clock.Clock, genID *snowflake.Node) domain.Service {
	return &Service{
		log:      log.Named("user.service"),
		cfg:      cfg,
		db:       conn,
		repo:     repo,
		creds:    creds,
		recorder: recorder,
		clock:    clk,
		genID:    genID,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, domain.ErrInvalidRequest
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidRequest
	}
	if len(strings.TrimSpace(req.Password)) < s.cfg.MinPasswordLen {
		return nil, domain.ErrInvalidRequest
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:        s.genID.Generate(),
		Username:  username,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Status:    domain.StatusPending,
		Role:      role.EndUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &creddomain.Credential{
		UserID:            user.ID,
		PasswordHash:      hashed,
		Algo:              password.AlgoArgon2id,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// The user and its credential share one lifecycle; create both or neither.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, user); err != nil {
			return err
		}
		return s.creds.Create(ctx, tx, cred)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recorder.Record(ctx, auditdomain.Entry{
		Actor:     username,
		Action:    "user.created",
		Success:   true,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) DeleteUser(ctx context.Context, id snowflake.ID) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// Owned rows go with the user.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&creddomain.Credential{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&creddomain.ResetToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&creddomain.VerificationToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&sessiondomain.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&grantdomain.RefreshTokenRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&grantdomain.Authorization{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&consentdomain.Consent{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.User{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.recorder.Record(ctx, auditdomain.Entry{
		Actor:   user.Username,
		Action:  "user.deleted",
		Success: true,
	})
	return nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

// Package scheduler sweeps expired rows out of the store on a fixed
// interval. Sessions, recovery tokens, never-exchanged codes and expired
// refresh tokens all carry their own expiry; the sweeper is what actually
// reclaims them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smallbiznis/identra/internal/clock"
	creddomain "github.com/smallbiznis/identra/internal/credential/domain"
	grantdomain "github.com/smallbiznis/identra/internal/grant/domain"
	sessiondomain "github.com/smallbiznis/identra/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

var rowsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identra_sweeper_rows_deleted_total",
	Help: "Expired rows removed by the background sweeper, by job.",
}, []string{"job"})

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Sessions sessiondomain.Repository
	Clock    clock.Clock
	Config   Config `optional:"true"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	sessions sessiondomain.Repository
	clock    clock.Clock
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Sessions == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		sessions: p.Sessions,
		clock:    p.Clock,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context, now time.Time) (int64, error)) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	removed, err := fn(ctx, s.clock.Now())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.log.Warn("sweep timed out", zap.String("job", name), zap.Error(err))
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	if removed > 0 {
		rowsSwept.WithLabelValues(name).Add(float64(removed))
		s.log.Info("swept expired rows", zap.String("job", name), zap.Int64("removed", removed))
	}
	return nil
}

// RunOnce performs a single sweep of every job. Job failures are joined so
// one broken sweep does not starve the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "expired_sessions", s.sweepSessions))
	err = errors.Join(err, s.runJob(parent, "expired_recovery_tokens", s.sweepRecoveryTokens))
	err = errors.Join(err, s.runJob(parent, "expired_codes", s.sweepUnusedCodes))
	err = errors.Join(err, s.runJob(parent, "expired_refresh_tokens", s.sweepRefreshTokens))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) sweepSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.sessions.DeleteExpired(ctx, now)
}

func (s *Scheduler) sweepRecoveryTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	tx := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&creddomain.ResetToken{})
	if tx.Error != nil {
		return total, tx.Error
	}
	total += tx.RowsAffected

	tx = s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&creddomain.VerificationToken{})
	if tx.Error != nil {
		return total, tx.Error
	}
	return total + tx.RowsAffected, nil
}

// sweepUnusedCodes removes grants whose code expired before it was ever
// exchanged. Exchanged grants are left alone; their lifetime is bounded by
// the tokens hanging off them.
func (s *Scheduler) sweepUnusedCodes(ctx context.Context, now time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).
		Where("code_used_at IS NULL AND access_token_value IS NULL AND code_expires_at <= ?", now).
		Delete(&grantdomain.Authorization{})
	return tx.RowsAffected, tx.Error
}

func (s *Scheduler) sweepRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&grantdomain.RefreshTokenRecord{})
	return tx.RowsAffected, tx.Error
}

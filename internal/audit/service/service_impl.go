package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/identra/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const bufferSize = 1024

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

// Recorder buffers entries and writes them from a single worker goroutine.
// Writes are best-effort: a full buffer or a failed insert is logged and
// dropped, never surfaced to the caller.
type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	entries chan domain.AuditLog
	done    chan struct{}
}

func NewRecorder(p Params) *Recorder {
	return &Recorder{
		db:      p.DB,
		log:     p.Log.Named("audit.recorder"),
		repo:    p.Repo,
		entries: make(chan domain.AuditLog, bufferSize),
		done:    make(chan struct{}),
	}
}

func Provide(r *Recorder) domain.Recorder { return r }

func (r *Recorder) Start() {
	go r.drain()
}

func (r *Recorder) Stop(ctx context.Context) error {
	close(r.entries)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Record(_ context.Context, entry domain.Entry) {
	row := domain.AuditLog{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String(),
		Actor:     strings.TrimSpace(entry.Actor),
		Action:    strings.TrimSpace(entry.Action),
		Success:   entry.Success,
		CreatedAt: time.Now().UTC(),
	}
	if row.Action == "" {
		return
	}
	if msg := strings.TrimSpace(entry.Error); msg != "" {
		row.ErrorMessage = &msg
	}
	if ip := strings.TrimSpace(entry.IPAddress); ip != "" {
		row.IPAddress = &ip
	}
	if ua := strings.TrimSpace(entry.UserAgent); ua != "" {
		row.UserAgent = &ua
	}
	if len(entry.Metadata) > 0 {
		payload := make(map[string]any, len(entry.Metadata))
		for key, value := range entry.Metadata {
			if key == "" {
				continue
			}
			payload[key] = value
		}
		row.Metadata = datatypes.JSONMap(payload)
	}

	select {
	case r.entries <- row:
	default:
		r.log.Warn("audit buffer full, entry dropped", zap.String("action", row.Action))
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for row := range r.entries {
		entry := row
		if err := r.repo.Insert(context.Background(), r.db, &entry); err != nil {
			r.log.Warn("failed to write audit log",
				zap.String("action", entry.Action),
				zap.Error(err),
			)
		}
	}
}

func RegisterLifecycle(lc fx.Lifecycle, r *Recorder) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: r.Stop,
	})
}

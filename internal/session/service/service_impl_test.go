package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	"github.com/smallbiznis/identra/internal/session/domain"
	"github.com/smallbiznis/identra/internal/session/repository"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (domain.Manager, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{SessionTTL: time.Hour, TokenBytes: 32}
	return New(zap.NewNop(), cfg, repository.New(conn), clk), clk
}

func TestSessionLifecycle(t *testing.T) {
	mgr, clk := newTestManager(t)
	ctx := context.Background()

	created, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 42})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	if got, want := created.ExpiresAt, clk.Now().Add(time.Hour); !got.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", got, want)
	}

	clk.Advance(10 * time.Minute)
	touched, err := mgr.Touch(ctx, created.ID)
	if err != nil {
		t.Fatalf("touch session: %v", err)
	}
	if !touched.LastAccessedAt.Equal(clk.Now()) {
		t.Fatalf("last_accessed_at = %v, want %v", touched.LastAccessedAt, clk.Now())
	}

	if err := mgr.Invalidate(ctx, created.ID); err != nil {
		t.Fatalf("invalidate session: %v", err)
	}
	if _, err := mgr.Touch(ctx, created.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after invalidate, got %v", err)
	}
}

func TestSessionExpiredOnNextAccess(t *testing.T) {
	mgr, clk := newTestManager(t)
	ctx := context.Background()

	created, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 7})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	clk.Advance(time.Hour + time.Second)
	if _, err := mgr.Touch(ctx, created.ID); err != domain.ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// Expired sessions are reaped on first access, afterwards they simply
	// do not exist.
	if _, err := mgr.Touch(ctx, created.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after reap, got %v", err)
	}
}

func TestInvalidateAllForUser(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	clientID := "admin-client"
	for i := 0; i < 3; i++ {
		if _, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 9, ClientID: &clientID}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	other, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 10})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	count, err := mgr.InvalidateAllForUser(ctx, 9)
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if count != 3 {
		t.Fatalf("invalidated %d sessions, want 3", count)
	}

	if _, err := mgr.Touch(ctx, other.ID); err != nil {
		t.Fatalf("unrelated session should survive: %v", err)
	}
}

func TestInvalidateForUserAndClient(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	clientID := "admin-client"
	if _, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 9, ClientID: &clientID}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	plain, err := mgr.Create(ctx, domain.CreateSessionRequest{UserID: 9})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	count, err := mgr.InvalidateForUserAndClient(ctx, 9, clientID)
	if err != nil {
		t.Fatalf("invalidate for client: %v", err)
	}
	if count != 1 {
		t.Fatalf("invalidated %d sessions, want 1", count)
	}

	if _, err := mgr.Touch(ctx, plain.ID); err != nil {
		t.Fatalf("session without client should survive: %v", err)
	}
}

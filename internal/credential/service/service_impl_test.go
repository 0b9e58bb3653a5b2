package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/config"
	"github.com/smallbiznis/identra/internal/credential/domain"
	"github.com/smallbiznis/identra/internal/credential/repository"
	userdomain "github.com/smallbiznis/identra/internal/user/domain"
	userrepository "github.com/smallbiznis/identra/internal/user/repository"
	userservice "github.com/smallbiznis/identra/internal/user/service"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureRecorder struct {
	entries []auditdomain.Entry
}

func (c *captureRecorder) Record(_ context.Context, entry auditdomain.Entry) {
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) find(action string) *auditdomain.Entry {
	for i := range c.entries {
		if c.entries[i].Action == action {
			return &c.entries[i]
		}
	}
	return nil
}

type fixture struct {
	conn     *gorm.DB
	creds    domain.Service
	users    userdomain.Service
	clock    *clock.FakeClock
	recorder *captureRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = conn.AutoMigrate(
		&userdomain.User{},
		&domain.Credential{},
		&domain.ResetToken{},
		&domain.VerificationToken{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
		MinPasswordLen:   8,
		ResetTokenTTL:    time.Hour,
		TokenBytes:       32,
	}

	recorder := &captureRecorder{}
	userRepo := userrepository.New(conn)
	credRepo := repository.New(conn)
	users := userservice.New(zap.NewNop(), cfg, conn, userRepo, credRepo, recorder, clk, node)
	creds := New(zap.NewNop(), cfg, credRepo, userRepo, recorder, clk)

	return &fixture{
		conn:     conn,
		creds:    creds,
		users:    users,
		clock:    clk,
		recorder: recorder,
	}
}

func (f *fixture) createUser(t *testing.T, username string) *userdomain.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), userdomain.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) verify(username, password string) error {
	_, err := f.creds.Verify(context.Background(), domain.VerifyRequest{
		Username: username,
		Password: password,
	})
	return err
}

func TestVerifyGoodPassword(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")

	result, err := f.creds.Verify(context.Background(), domain.VerifyRequest{
		Username: "alice",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.UserID != user.ID {
		t.Fatalf("user id = %v, want %v", result.UserID, user.ID)
	}

	stored, err := f.users.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("last_login_at not set after successful login")
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	f := newFixture(t)

	if err := f.verify("nobody", "whatever"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice")

	for i := 0; i < 5; i++ {
		if err := f.verify("alice", "wrong password"); !errors.Is(err, domain.ErrBadPassword) {
			t.Fatalf("attempt %d: err = %v, want ErrBadPassword", i+1, err)
		}
	}
	if f.recorder.find("credential.locked") == nil {
		t.Fatal("expected credential.locked audit entry after fifth failure")
	}

	// Even the right password is refused while the lock holds.
	if err := f.verify("alice", "correct horse"); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	// The lock expires on its own.
	f.clock.Advance(15*time.Minute + time.Second)
	if err := f.verify("alice", "correct horse"); err != nil {
		t.Fatalf("verify after lock expiry: %v", err)
	}

	// Success cleared the counter, so one stray failure does not re-lock.
	if err := f.verify("alice", "wrong password"); !errors.Is(err, domain.ErrBadPassword) {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}
	if err := f.verify("alice", "correct horse"); err != nil {
		t.Fatalf("verify after single failure: %v", err)
	}
}

func TestDisabledAccountRejected(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")

	err := f.conn.Model(&userdomain.User{}).Where("id = ?", user.ID).
		Update("status", userdomain.StatusDisabled).Error
	if err != nil {
		t.Fatalf("disable user: %v", err)
	}

	if err := f.verify("alice", "correct horse"); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	ctx := context.Background()

	err := f.creds.ChangePassword(ctx, domain.ChangePasswordRequest{
		UserID:      user.ID,
		Current:     "wrong password",
		NewPassword: "brand new pass",
	})
	if !errors.Is(err, domain.ErrBadPassword) {
		t.Fatalf("err = %v, want ErrBadPassword", err)
	}

	err = f.creds.ChangePassword(ctx, domain.ChangePasswordRequest{
		UserID:      user.ID,
		Current:     "correct horse",
		NewPassword: "brand new pass",
	})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}

	if err := f.verify("alice", "correct horse"); !errors.Is(err, domain.ErrBadPassword) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if err := f.verify("alice", "brand new pass"); err != nil {
		t.Fatalf("verify new password: %v", err)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	ctx := context.Background()

	raw, err := f.creds.CreateResetToken(ctx, user.ID, "127.0.0.1")
	if err != nil {
		t.Fatalf("create reset token: %v", err)
	}

	resetFor, err := f.creds.ResetPassword(ctx, raw, "brand new pass")
	if err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if resetFor != user.ID {
		t.Fatalf("reset user id = %v, want %v", resetFor, user.ID)
	}
	if err := f.verify("alice", "brand new pass"); err != nil {
		t.Fatalf("verify new password: %v", err)
	}

	// A consumed token stays inert.
	if _, err := f.creds.ResetPassword(ctx, raw, "another pass 1"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	ctx := context.Background()

	raw, err := f.creds.CreateResetToken(ctx, user.ID, "127.0.0.1")
	if err != nil {
		t.Fatalf("create reset token: %v", err)
	}

	f.clock.Advance(time.Hour + time.Second)
	if _, err := f.creds.ResetPassword(ctx, raw, "brand new pass"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestResetTokenUnlocksAccount(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := f.verify("alice", "wrong password"); !errors.Is(err, domain.ErrBadPassword) {
			t.Fatalf("attempt %d: err = %v, want ErrBadPassword", i+1, err)
		}
	}
	if err := f.verify("alice", "correct horse"); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	raw, err := f.creds.CreateResetToken(ctx, user.ID, "127.0.0.1")
	if err != nil {
		t.Fatalf("create reset token: %v", err)
	}
	if _, err := f.creds.ResetPassword(ctx, raw, "brand new pass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Changing the password lifts the lock immediately.
	if err := f.verify("alice", "brand new pass"); err != nil {
		t.Fatalf("verify after reset: %v", err)
	}
}

func TestVerificationTokenActivatesAccount(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice")
	ctx := context.Background()

	raw, err := f.creds.CreateVerificationToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("create verification token: %v", err)
	}

	verified, err := f.creds.ConsumeVerificationToken(ctx, raw)
	if err != nil {
		t.Fatalf("consume verification token: %v", err)
	}
	if verified != user.ID {
		t.Fatalf("user id = %v, want %v", verified, user.ID)
	}

	stored, err := f.users.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !stored.EmailVerified {
		t.Fatal("email_verified not set")
	}
	if stored.Status != userdomain.StatusActive {
		t.Fatalf("status = %q, want %q", stored.Status, userdomain.StatusActive)
	}

	if _, err := f.creds.ConsumeVerificationToken(ctx, raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/smallbiznis/identra/internal/clock"
	"github.com/smallbiznis/identra/internal/consent/domain"
	"github.com/smallbiznis/identra/internal/consent/repository"
	"github.com/smallbiznis/identra/pkg/db"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) domain.Ledger {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Consent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(zap.NewNop(), repository.New(conn), clk)
}

func TestGrantMergesScopes(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "admin-client", 1, []string{"read"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	consent, err := ledger.Grant(ctx, "admin-client", 1, []string{"write"})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !reflect.DeepEqual(consent.Scopes, []string{"read", "write"}) {
		t.Fatalf("scopes = %v, want [read write]", consent.Scopes)
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Grant(ctx, "admin-client", 1, []string{"read", "write"})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := ledger.Grant(ctx, "admin-client", 1, []string{"read", "write"})
	if err != nil {
		t.Fatalf("grant again: %v", err)
	}
	if !reflect.DeepEqual(first.Scopes, second.Scopes) {
		t.Fatalf("scopes changed across identical grants: %v vs %v", first.Scopes, second.Scopes)
	}
}

func TestHasConsented(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "admin-client", 1, []string{"read", "write"}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ok, err := ledger.HasConsented(ctx, "admin-client", 1, []string{"read"})
	if err != nil || !ok {
		t.Fatalf("subset should be covered, ok=%v err=%v", ok, err)
	}
	ok, err = ledger.HasConsented(ctx, "admin-client", 1, []string{"read", "admin"})
	if err != nil || ok {
		t.Fatalf("superset must not be covered, ok=%v err=%v", ok, err)
	}
	ok, err = ledger.HasConsented(ctx, "other-client", 1, []string{"read"})
	if err != nil || ok {
		t.Fatalf("missing pair must not be covered, ok=%v err=%v", ok, err)
	}
}

func TestApproved(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "admin-client", 1, []string{"write", "read"}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	scopes, err := ledger.Approved(ctx, "admin-client", 1)
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	if !reflect.DeepEqual(scopes, []string{"read", "write"}) {
		t.Fatalf("scopes = %v, want [read write]", scopes)
	}

	scopes, err = ledger.Approved(ctx, "other-client", 1)
	if err != nil || scopes != nil {
		t.Fatalf("missing pair: scopes=%v err=%v, want nil", scopes, err)
	}
}

func TestRevoke(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Grant(ctx, "admin-client", 1, []string{"read"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := ledger.Revoke(ctx, "admin-client", 1); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err := ledger.HasConsented(ctx, "admin-client", 1, []string{"read"})
	if err != nil || ok {
		t.Fatalf("expected no consent after revoke, ok=%v err=%v", ok, err)
	}
	if err := ledger.Revoke(ctx, "admin-client", 1); err != domain.ErrConsentNotFound {
		t.Fatalf("expected ErrConsentNotFound, got %v", err)
	}
}

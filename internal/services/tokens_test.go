package services_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/mkarlsen/knotscore/internal/errors"
	"github.com/mkarlsen/knotscore/internal/logger"
	"github.com/mkarlsen/knotscore/internal/models"
	"github.com/mkarlsen/knotscore/internal/services"
)

func TestIssueToken_AdminOnly(t *testing.T) {
	f := newFixture(t)
	svc := services.NewTokenService(logger.New(), f.repo)
	ctx := context.Background()

	for _, actor := range []models.Actor{f.judge(), f.calculator()} {
		if _, err := svc.IssueToken(ctx, actor, f.competitorID); !stderrors.Is(err, services.ErrTokenIssueNotPermitted) {
			t.Errorf("%s issue: error = %v, want ErrTokenIssueNotPermitted", actor.Role, err)
		}
	}
}

func TestIssueToken_RotationInvalidatesAndAudits(t *testing.T) {
	f := newFixture(t)
	svc := services.NewTokenService(logger.New(), f.repo)
	ctx := context.Background()
	admin := f.admin()

	first, err := svc.IssueToken(ctx, admin, f.competitorID)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if first == "" {
		t.Fatal("issued an empty token")
	}

	second, err := svc.IssueToken(ctx, admin, f.competitorID)
	if err != nil {
		t.Fatalf("second IssueToken failed: %v", err)
	}
	if second == first {
		t.Error("rotation returned the same token")
	}

	// Only the latest token resolves.
	if _, err := svc.StationOverview(ctx, first); kindOf(t, err) != errors.ErrNotFound {
		t.Errorf("stale token kind = %v, want not found", kindOf(t, err))
	}
	if _, err := svc.StationOverview(ctx, second); err != nil {
		t.Errorf("current token lookup failed: %v", err)
	}

	entries, err := f.repo.ListAuditEntries(ctx, f.eventID)
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Action != models.AuditTokenIssued {
			t.Errorf("action = %q, want token_issued", e.Action)
		}
	}
	// The rotation entry records the replaced token.
	if entries[0].PreviousValue == nil {
		t.Error("rotation audit entry has no previous value")
	}
	if entries[1].PreviousValue != nil {
		t.Error("first issuance audit entry has a previous value")
	}
}

func TestIssueToken_ForeignCompetitor(t *testing.T) {
	f := newFixture(t)
	svc := services.NewTokenService(logger.New(), f.repo)

	foreign := f.admin()
	foreign.EventID = f.eventID + 1
	_, err := svc.IssueToken(context.Background(), foreign, f.competitorID)
	if kindOf(t, err) != errors.ErrNotFound {
		t.Errorf("foreign issue kind = %v, want not found", kindOf(t, err))
	}
}

func TestStationOverview(t *testing.T) {
	f := newFixture(t)
	tokens := services.NewTokenService(logger.New(), f.repo)
	ledger := services.NewLedgerService(logger.New(), f.repo)
	ctx := context.Background()

	token, err := tokens.IssueToken(ctx, f.admin(), f.competitorID)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ledger.RecordAttempt(ctx, f.judge(), recordInput(f, 1, timed(t, 1500))); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	overview, err := tokens.StationOverview(ctx, token)
	if err != nil {
		t.Fatalf("StationOverview failed: %v", err)
	}
	if overview.Competitor.ID != f.competitorID {
		t.Errorf("competitor = %d, want %d", overview.Competitor.ID, f.competitorID)
	}
	if overview.Competitor.AccessToken != nil {
		t.Error("overview echoes the access token")
	}
	if overview.Category.Code != "scouts" {
		t.Errorf("category = %q", overview.Category.Code)
	}
	if len(overview.Nodes) != 2 {
		t.Errorf("got %d nodes, want the category's 2", len(overview.Nodes))
	}
	if len(overview.Attempts) != 1 {
		t.Errorf("got %d attempts, want 1", len(overview.Attempts))
	}
}

func TestStationOverview_UnknownToken(t *testing.T) {
	f := newFixture(t)
	svc := services.NewTokenService(logger.New(), f.repo)

	_, err := svc.StationOverview(context.Background(), "no-such-token")
	if kindOf(t, err) != errors.ErrNotFound {
		t.Errorf("unknown token kind = %v, want not found", kindOf(t, err))
	}
}

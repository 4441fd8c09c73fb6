package unit

import (
	"encoding/json"
	"errors"
	"testing"

	periodservice "caritas/contexts/finance-core/accounting-period-service"
	perioderrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	periodports "caritas/contexts/finance-core/accounting-period-service/ports"

	"github.com/shopspring/decimal"
)

func julyPeriodInput() periodports.CreatePeriodInput {
	return periodports.CreatePeriodInput{
		OrgID:     "org-1",
		Type:      periodports.PeriodTypeMonth,
		StartDate: date("2026-07-01"),
		EndDate:   date("2026-07-31"),
	}
}

func TestCreatePeriodRequiresElevatedRole(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "plain", periodports.RoleMember)

	if _, err := module.Service.CreatePeriod(actorContext("plain"), julyPeriodInput()); !errors.Is(err, perioderrors.ErrForbidden) {
		t.Fatalf("plain member: expected ErrForbidden, got %v", err)
	}
	if _, err := module.Service.CreatePeriod(actorContext("treasurer"), julyPeriodInput()); !errors.Is(err, perioderrors.ErrForbidden) {
		t.Fatalf("non-member: expected ErrForbidden, got %v", err)
	}

	module.Store.SeedMember("org-1", "treasurer", periodports.RoleTreasurer)
	created, err := module.Service.CreatePeriod(actorContext("treasurer"), julyPeriodInput())
	if err != nil {
		t.Fatalf("treasurer create failed: %v", err)
	}
	if created.Status != periodports.PeriodStatusOpen {
		t.Fatalf("new period must start open, got %s", created.Status)
	}
}

func TestOverlappingPeriodsAreRejected(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "admin", periodports.RoleAdmin)
	ctx := actorContext("admin")

	if _, err := module.Service.CreatePeriod(ctx, julyPeriodInput()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Q3 straddles the existing July period.
	_, err := module.Service.CreatePeriod(ctx, periodports.CreatePeriodInput{
		OrgID:     "org-1",
		Type:      periodports.PeriodTypeQuarter,
		StartDate: date("2026-07-01"),
		EndDate:   date("2026-09-30"),
	})
	if !errors.Is(err, perioderrors.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	periods, err := module.Service.ListPeriods(ctx, "org-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("rejected overlap must not leave a row, got %d periods", len(periods))
	}
}

func TestAdjacentPeriodsDoNotOverlap(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "admin", periodports.RoleAdmin)
	ctx := actorContext("admin")

	if _, err := module.Service.CreatePeriod(ctx, julyPeriodInput()); err != nil {
		t.Fatalf("july create failed: %v", err)
	}
	if _, err := module.Service.CreatePeriod(ctx, periodports.CreatePeriodInput{
		OrgID:     "org-1",
		Type:      periodports.PeriodTypeMonth,
		StartDate: date("2026-08-01"),
		EndDate:   date("2026-08-31"),
	}); err != nil {
		t.Fatalf("august create failed: %v", err)
	}
}

func TestClosePeriodFreezesBalanceSnapshot(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "treasurer", periodports.RoleTreasurer)
	module.Store.SeedLedgerEntry("org-1", "income", decimal.RequireFromString("1000.00"), date("2026-07-05"))
	module.Store.SeedLedgerEntry("org-1", "expense", decimal.RequireFromString("250.25"), date("2026-07-20"))
	// Outside the range: must not count.
	module.Store.SeedLedgerEntry("org-1", "income", decimal.RequireFromString("9999.00"), date("2026-08-01"))
	ctx := actorContext("treasurer")

	created, err := module.Service.CreatePeriod(ctx, julyPeriodInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	closed, err := module.Service.ClosePeriod(ctx, created.PeriodID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if closed.Status != periodports.PeriodStatusClosed || closed.ClosedAt == nil || closed.ClosedByID != "treasurer" {
		t.Fatalf("close did not stamp the row: %+v", closed)
	}
	var snapshot periodports.BalanceSnapshot
	if err := json.Unmarshal(closed.Snapshot, &snapshot); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if snapshot.TotalIncome != "1000.00" || snapshot.TotalExpense != "250.25" || snapshot.Net != "749.75" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestCloseRejectsNonOpenPeriod(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "admin", periodports.RoleAdmin)
	ctx := actorContext("admin")

	created, err := module.Service.CreatePeriod(ctx, julyPeriodInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.ClosePeriod(ctx, created.PeriodID); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if _, err := module.Service.ClosePeriod(ctx, created.PeriodID); !errors.Is(err, perioderrors.ErrInvalidStatus) {
		t.Fatalf("second close: expected ErrInvalidStatus, got %v", err)
	}
}

func TestReopenIsAdminOnly(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "treasurer", periodports.RoleTreasurer)
	module.Store.SeedMember("org-1", "admin", periodports.RoleAdmin)
	ctx := actorContext("treasurer")

	created, err := module.Service.CreatePeriod(ctx, julyPeriodInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.ClosePeriod(ctx, created.PeriodID); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := module.Service.ReopenPeriod(ctx, created.PeriodID); !errors.Is(err, perioderrors.ErrForbidden) {
		t.Fatalf("treasurer reopen: expected ErrForbidden, got %v", err)
	}

	reopened, err := module.Service.ReopenPeriod(actorContext("admin"), created.PeriodID)
	if err != nil {
		t.Fatalf("admin reopen failed: %v", err)
	}
	if reopened.Status != periodports.PeriodStatusOpen || reopened.ClosedAt != nil || len(reopened.Snapshot) != 0 {
		t.Fatalf("reopen did not clear the close stamp: %+v", reopened)
	}
}

func TestPeriodLifecycleLeavesAuditTrail(t *testing.T) {
	module := periodservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "admin", periodports.RoleAdmin)
	ctx := actorContext("admin")

	created, err := module.Service.CreatePeriod(ctx, julyPeriodInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.ClosePeriod(ctx, created.PeriodID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := module.Service.ReopenPeriod(ctx, created.PeriodID); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	audits, err := module.Service.ListAudits(ctx, created.PeriodID)
	if err != nil {
		t.Fatalf("list audits failed: %v", err)
	}
	if len(audits) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(audits))
	}
	actions := []string{audits[0].Action, audits[1].Action, audits[2].Action}
	want := []string{"create_period", "close_period", "reopen_period"}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("audit actions %v, want %v", actions, want)
		}
	}
}

package unit

import (
	"errors"
	"testing"
	"time"

	reportservice "caritas/contexts/program-delivery/report-service"
	reporterrors "caritas/contexts/program-delivery/report-service/domain/errors"
	reportports "caritas/contexts/program-delivery/report-service/ports"

	"github.com/shopspring/decimal"
)

func validReportInput() reportports.CreateReportInput {
	return reportports.CreateReportInput{
		OrgID:        "org-1",
		ActivityID:   "activity-1",
		Title:        "Summer food drive",
		Summary:      "Distributed 400 meal packages.",
		TotalExpense: decimal.RequireFromString("840.00"),
		Currency:     "EUR",
	}
}

func TestOneReportPerActivity(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", reportports.RoleMember)
	module.Store.SeedMember("org-1", "user-2", reportports.RoleMember)
	ctx := actorContext("user-1")

	if _, err := module.Service.CreateReport(ctx, validReportInput()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := module.Service.CreateReport(actorContext("user-2"), validReportInput()); !errors.Is(err, reporterrors.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}

	reports, err := module.Service.ListReports(ctx, "org-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected a single report, got %d", len(reports))
	}
}

func TestEditGuardsFollowWorkflowStatus(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", reportports.RoleMember)
	module.Store.SeedMember("org-1", "other", reportports.RoleMember)
	module.Store.SeedMember("org-1", "treasurer", reportports.RoleTreasurer)
	ownerCtx := actorContext("owner")

	created, err := module.Service.CreateReport(ownerCtx, validReportInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	update := reportports.UpdateReportInput{
		Title:        "Summer food drive (final)",
		Summary:      created.Summary,
		TotalExpense: created.TotalExpense,
		Currency:     created.Currency,
	}

	// Draft: owner edits, strangers do not.
	if _, err := module.Service.UpdateReport(actorContext("other"), created.ReportID, update); !errors.Is(err, reporterrors.ErrForbidden) {
		t.Fatalf("non-owner edit: expected ErrForbidden, got %v", err)
	}
	if _, err := module.Service.UpdateReport(ownerCtx, created.ReportID, update); err != nil {
		t.Fatalf("owner draft edit failed: %v", err)
	}

	// Submitted: owner is locked out, elevated roles may still touch it.
	if _, err := module.Service.SubmitReport(ownerCtx, created.ReportID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := module.Service.UpdateReport(ownerCtx, created.ReportID, update); !errors.Is(err, reporterrors.ErrInvalidStatus) {
		t.Fatalf("owner edit of submitted report: expected ErrInvalidStatus, got %v", err)
	}
	if _, err := module.Service.UpdateReport(actorContext("treasurer"), created.ReportID, update); err != nil {
		t.Fatalf("elevated edit of submitted report failed: %v", err)
	}

	// Rejected: owner may revise and resubmit.
	if _, err := module.Service.RejectReport(actorContext("treasurer"), created.ReportID, "needs receipts"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := module.Service.UpdateReport(ownerCtx, created.ReportID, update); err != nil {
		t.Fatalf("owner edit of rejected report failed: %v", err)
	}
}

func TestApprovalRequiresElevatedRoleAndSubmittedStatus(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", reportports.RoleMember)
	module.Store.SeedMember("org-1", "admin", reportports.RoleAdmin)
	ownerCtx := actorContext("owner")

	created, err := module.Service.CreateReport(ownerCtx, validReportInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := module.Service.ApproveReport(actorContext("admin"), created.ReportID); !errors.Is(err, reporterrors.ErrInvalidStatus) {
		t.Fatalf("approve from draft: expected ErrInvalidStatus, got %v", err)
	}
	if _, err := module.Service.SubmitReport(ownerCtx, created.ReportID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := module.Service.ApproveReport(ownerCtx, created.ReportID); !errors.Is(err, reporterrors.ErrForbidden) {
		t.Fatalf("approve by plain member: expected ErrForbidden, got %v", err)
	}
	if _, err := module.Service.ApproveReport(actorContext("admin"), created.ReportID); err != nil {
		t.Fatalf("admin approve failed: %v", err)
	}
}

func TestApprovalSpawnsLedgerExpense(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", reportports.RoleMember)
	module.Store.SeedMember("org-1", "treasurer", reportports.RoleTreasurer)
	ownerCtx := actorContext("owner")

	created, err := module.Service.CreateReport(ownerCtx, validReportInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.SubmitReport(ownerCtx, created.ReportID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	approved, err := module.Service.ApproveReport(actorContext("treasurer"), created.ReportID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.ApprovedByID != "treasurer" || approved.ApprovedAt == nil {
		t.Fatalf("approval did not stamp the report: %+v", approved)
	}

	spawned := module.Store.SpawnedTransactions()
	if len(spawned) != 1 {
		t.Fatalf("expected one spawned transaction, got %d", len(spawned))
	}
	got := spawned[0]
	if !got.Amount.Equal(created.TotalExpense) || got.Currency != created.Currency {
		t.Fatalf("spawned amount %s %s, want %s %s", got.Amount, got.Currency, created.TotalExpense, created.Currency)
	}
	if got.SourceReportID != created.ReportID || got.OrgID != created.OrgID {
		t.Fatalf("spawned transaction not linked to the report: %+v", got)
	}
}

func TestApprovalBlockedByClosedPeriod(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", reportports.RoleMember)
	module.Store.SeedMember("org-1", "admin", reportports.RoleAdmin)
	now := time.Now().UTC()
	module.Store.SeedClosedPeriod("org-1", reportports.ClosedPeriod{
		PeriodID:  "period-now",
		Type:      "month",
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 10),
	})
	ownerCtx := actorContext("owner")

	created, err := module.Service.CreateReport(ownerCtx, validReportInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.SubmitReport(ownerCtx, created.ReportID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := module.Service.ApproveReport(actorContext("admin"), created.ReportID); !errors.Is(err, reporterrors.ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}
	if spawned := module.Store.SpawnedTransactions(); len(spawned) != 0 {
		t.Fatalf("blocked approval must not book an expense, got %d rows", len(spawned))
	}
	current, err := module.Service.GetReport(ownerCtx, created.ReportID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != reportports.ReportStatusSubmitted {
		t.Fatalf("blocked approval must leave the report submitted, got %s", current.Status)
	}
}

func TestWorkflowLeavesAuditTrail(t *testing.T) {
	module := reportservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", reportports.RoleMember)
	module.Store.SeedMember("org-1", "admin", reportports.RoleAdmin)
	ownerCtx := actorContext("owner")

	created, err := module.Service.CreateReport(ownerCtx, validReportInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := module.Service.SubmitReport(ownerCtx, created.ReportID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := module.Service.ApproveReport(actorContext("admin"), created.ReportID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	audits, err := module.Service.ListAudits(ownerCtx, created.ReportID)
	if err != nil {
		t.Fatalf("list audits failed: %v", err)
	}
	if len(audits) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(audits))
	}
	want := []string{"create_report", "submit_report", "approve_report"}
	for i := range want {
		if audits[i].Action != want[i] {
			t.Fatalf("audit %d action %s, want %s", i, audits[i].Action, want[i])
		}
	}
}

package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgerservice "caritas/contexts/finance-core/ledger-service"
	ledgererrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	ledgerports "caritas/contexts/finance-core/ledger-service/ports"
	"caritas/internal/platform/actorctx"

	"github.com/shopspring/decimal"
)

func date(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed.UTC()
}

func actorContext(userID string) context.Context {
	return actorctx.WithActor(context.Background(), userID)
}

func validCreateInput() ledgerports.CreateTransactionInput {
	return ledgerports.CreateTransactionInput{
		OrgID:         "org-1",
		Type:          ledgerports.TransactionTypeExpense,
		Amount:        decimal.RequireFromString("120.50"),
		Currency:      "EUR",
		Description:   "venue rental",
		EffectiveDate: date("2026-07-10"),
	}
}

func TestCreateTransactionRequiresActor(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)

	_, err := module.Service.CreateTransaction(context.Background(), validCreateInput())
	if !errors.Is(err, ledgererrors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateTransactionRequiresMembership(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)

	_, err := module.Service.CreateTransaction(actorContext("stranger"), validCreateInput())
	if !errors.Is(err, ledgererrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateTransactionWritesAuditRow(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	ctx := actorContext("user-1")

	created, err := module.Service.CreateTransaction(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	audits, err := module.Service.ListAudits(ctx, created.TransactionID)
	if err != nil {
		t.Fatalf("list audits failed: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("expected exactly one audit row, got %d", len(audits))
	}
	if audits[0].Action != "create_transaction" || audits[0].ActorID != "user-1" {
		t.Fatalf("unexpected audit entry %+v", audits[0])
	}
}

func TestClosedPeriodBlocksCreate(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleTreasurer)
	module.Store.SeedClosedPeriod("org-1", ledgerports.ClosedPeriod{
		PeriodID:  "period-jul",
		Type:      "month",
		StartDate: date("2026-07-01"),
		EndDate:   date("2026-07-31"),
	})
	ctx := actorContext("user-1")

	if _, err := module.Service.CreateTransaction(ctx, validCreateInput()); !errors.Is(err, ledgererrors.ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}

	// Nothing may survive the rolled-back attempt.
	items, err := module.Service.ListTransactions(ctx, ledgerports.TransactionFilter{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected zero rows after blocked create, got %d", len(items))
	}
}

func TestUpdateOutOfClosedPeriodStillBlocked(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleTreasurer)
	module.Store.SeedTransaction(ledgerports.LedgerTransaction{
		TransactionID: "tx-frozen",
		OrgID:         "org-1",
		Type:          ledgerports.TransactionTypeExpense,
		Amount:        decimal.RequireFromString("50.00"),
		Currency:      "EUR",
		EffectiveDate: date("2026-06-15"),
		CreatedByID:   "user-1",
	})
	module.Store.SeedClosedPeriod("org-1", ledgerports.ClosedPeriod{
		PeriodID:  "period-jun",
		Type:      "month",
		StartDate: date("2026-06-01"),
		EndDate:   date("2026-06-30"),
	})

	// Moving the row out of the frozen June period must fail even though the
	// new date is open.
	_, err := module.Service.UpdateTransaction(actorContext("user-1"), "tx-frozen", ledgerports.UpdateTransactionInput{
		Type:          ledgerports.TransactionTypeExpense,
		Amount:        decimal.RequireFromString("50.00"),
		Currency:      "EUR",
		EffectiveDate: date("2026-08-01"),
	})
	if !errors.Is(err, ledgererrors.ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}

	if err := module.Service.DeleteTransaction(actorContext("user-1"), "tx-frozen"); !errors.Is(err, ledgererrors.ErrPeriodClosed) {
		t.Fatalf("delete inside closed period: expected ErrPeriodClosed, got %v", err)
	}
}

func TestOwnershipGuardOnUpdate(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "owner", ledgerports.RoleMember)
	module.Store.SeedMember("org-1", "other", ledgerports.RoleMember)
	module.Store.SeedMember("org-1", "treasurer", ledgerports.RoleTreasurer)
	module.Store.SeedTransaction(ledgerports.LedgerTransaction{
		TransactionID: "tx-1",
		OrgID:         "org-1",
		Type:          ledgerports.TransactionTypeIncome,
		Amount:        decimal.RequireFromString("10.00"),
		Currency:      "EUR",
		EffectiveDate: date("2026-07-10"),
		CreatedByID:   "owner",
	})

	input := ledgerports.UpdateTransactionInput{
		Type:          ledgerports.TransactionTypeIncome,
		Amount:        decimal.RequireFromString("11.00"),
		Currency:      "EUR",
		EffectiveDate: date("2026-07-10"),
	}

	if _, err := module.Service.UpdateTransaction(actorContext("other"), "tx-1", input); !errors.Is(err, ledgererrors.ErrForbidden) {
		t.Fatalf("plain member updating another's row: expected ErrForbidden, got %v", err)
	}
	if _, err := module.Service.UpdateTransaction(actorContext("treasurer"), "tx-1", input); err != nil {
		t.Fatalf("elevated role update failed: %v", err)
	}
	if _, err := module.Service.UpdateTransaction(actorContext("owner"), "tx-1", input); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
}

func TestSystemGeneratedRowsAreImmutable(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "admin", ledgerports.RoleAdmin)
	module.Store.SeedTransaction(ledgerports.LedgerTransaction{
		TransactionID:   "tx-system",
		OrgID:           "org-1",
		Type:            ledgerports.TransactionTypeExpense,
		Amount:          decimal.RequireFromString("75.00"),
		Currency:        "EUR",
		EffectiveDate:   date("2026-07-20"),
		SystemGenerated: true,
		SourceReportID:  "report-1",
		CreatedByID:     "admin",
	})
	ctx := actorContext("admin")

	_, err := module.Service.UpdateTransaction(ctx, "tx-system", ledgerports.UpdateTransactionInput{
		Type:          ledgerports.TransactionTypeExpense,
		Amount:        decimal.RequireFromString("80.00"),
		Currency:      "EUR",
		EffectiveDate: date("2026-07-20"),
	})
	if !errors.Is(err, ledgererrors.ErrTransactionImmutable) {
		t.Fatalf("update: expected ErrTransactionImmutable, got %v", err)
	}
	if err := module.Service.DeleteTransaction(ctx, "tx-system"); !errors.Is(err, ledgererrors.ErrTransactionImmutable) {
		t.Fatalf("delete: expected ErrTransactionImmutable, got %v", err)
	}
}

func TestAttachmentRollbackOnFailedCreate(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	module.Store.SeedClosedPeriod("org-1", ledgerports.ClosedPeriod{
		PeriodID:  "period-jul",
		Type:      "month",
		StartDate: date("2026-07-01"),
		EndDate:   date("2026-07-31"),
	})
	ctx := actorContext("user-1")

	path, err := module.Attachments.Upload(ctx, "receipts", "receipt-1", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	input := validCreateInput()
	input.AttachmentPath = path
	if _, err := module.Service.CreateTransaction(ctx, input); !errors.Is(err, ledgererrors.ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}

	deletes := module.Attachments.Deletes()
	if len(deletes) != 1 {
		t.Fatalf("expected one compensating delete, got %d", len(deletes))
	}
	if deletes[0].Path != path || !deletes[0].Rollback {
		t.Fatalf("unexpected delete call %+v", deletes[0])
	}
	if module.Attachments.Exists(path) {
		t.Fatal("uploaded file must be removed after rollback")
	}
}

func TestNoAttachmentDeleteOnSuccessfulCreate(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	ctx := actorContext("user-1")

	path, err := module.Attachments.Upload(ctx, "receipts", "receipt-2", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	input := validCreateInput()
	input.AttachmentPath = path
	if _, err := module.Service.CreateTransaction(ctx, input); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if deletes := module.Attachments.Deletes(); len(deletes) != 0 {
		t.Fatalf("expected no delete calls on success, got %d", len(deletes))
	}
	if !module.Attachments.Exists(path) {
		t.Fatal("attachment must survive a successful mutation")
	}
}

func TestDeleteCleansUpAttachmentWithoutRollbackFlag(t *testing.T) {
	module := ledgerservice.NewInMemoryModule(nil)
	module.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	ctx := actorContext("user-1")

	path, err := module.Attachments.Upload(ctx, "receipts", "receipt-3", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	input := validCreateInput()
	input.AttachmentPath = path
	created, err := module.Service.CreateTransaction(ctx, input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := module.Service.DeleteTransaction(ctx, created.TransactionID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	deletes := module.Attachments.Deletes()
	if len(deletes) != 1 {
		t.Fatalf("expected one cleanup delete, got %d", len(deletes))
	}
	if deletes[0].Rollback {
		t.Fatal("post-commit cleanup is not a rollback")
	}
}

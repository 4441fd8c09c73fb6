package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusSubmitted ReportStatus = "submitted"
	ReportStatusApproved  ReportStatus = "approved"
	ReportStatusRejected  ReportStatus = "rejected"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleTreasurer Role = "treasurer"
	RoleAdmin     Role = "admin"
)

func (r Role) Elevated() bool {
	return r == RoleTreasurer || r == RoleAdmin
}

// ActivityReport documents how an activity spent its budget. An activity
// carries at most one report; approval freezes the report and books its
// total as a system-generated ledger expense.
type ActivityReport struct {
	ReportID     string
	OrgID        string
	ActivityID   string
	Title        string
	Summary      string
	TotalExpense decimal.Decimal
	Currency     string
	Status       ReportStatus
	CreatedByID  string
	ApprovedByID string
	ApprovedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateReportInput struct {
	OrgID        string
	ActivityID   string
	Title        string
	Summary      string
	TotalExpense decimal.Decimal
	Currency     string
}

type UpdateReportInput struct {
	Title        string
	Summary      string
	TotalExpense decimal.Decimal
	Currency     string
}

// SpawnedTransaction is the ledger row booked when a report is approved.
// It is written inside the approval transaction and is immutable afterwards.
type SpawnedTransaction struct {
	TransactionID  string
	OrgID          string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	EffectiveDate  time.Time
	SourceReportID string
	CreatedByID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClosedPeriod is the slice of an accounting period the approval guard
// needs.
type ClosedPeriod struct {
	PeriodID  string
	Type      string
	StartDate time.Time
	EndDate   time.Time
}

type AuditEntry struct {
	AuditID    string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     json.RawMessage
	After      json.RawMessage
	Comment    string
	CreatedAt  time.Time
}

type Repository interface {
	InActorTx(ctx context.Context, fn func(Repository) error) error

	GetReport(ctx context.Context, reportID string) (ActivityReport, error)
	ListReports(ctx context.Context, orgID string) ([]ActivityReport, error)
	CreateReport(ctx context.Context, report ActivityReport) error
	UpdateReport(ctx context.Context, report ActivityReport) error

	// FindReportByActivity enforces the one-report-per-activity invariant.
	FindReportByActivity(ctx context.Context, orgID string, activityID string) (ActivityReport, bool, error)

	GetMemberRole(ctx context.Context, orgID string, actorID string) (Role, bool, error)
	FindClosedPeriodCovering(ctx context.Context, orgID string, date time.Time) (ClosedPeriod, bool, error)

	// SpawnLedgerTransaction books the approval expense in the same
	// transaction as the report status change.
	SpawnLedgerTransaction(ctx context.Context, transaction SpawnedTransaction) error

	AddAudit(ctx context.Context, entry AuditEntry) error
	ListAudits(ctx context.Context, entityID string) ([]AuditEntry, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PeriodType string

const (
	PeriodTypeMonth   PeriodType = "month"
	PeriodTypeQuarter PeriodType = "quarter"
	PeriodTypeYear    PeriodType = "year"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
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

// AccountingPeriod is a date range that, once closed, freezes every
// financial mutation whose effective date falls inside it. Ranges never
// overlap within one org.
type AccountingPeriod struct {
	PeriodID   string
	OrgID      string
	Type       PeriodType
	StartDate  time.Time
	EndDate    time.Time
	Status     PeriodStatus
	ClosedAt   *time.Time
	ClosedByID string
	Snapshot   json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreatePeriodInput struct {
	OrgID     string
	Type      PeriodType
	StartDate time.Time
	EndDate   time.Time
}

// BalanceSnapshot is frozen onto the period row at close time.
type BalanceSnapshot struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Net          string `json:"net"`
	ComputedAt   string `json:"computed_at"`
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

	GetPeriod(ctx context.Context, periodID string) (AccountingPeriod, error)
	ListPeriods(ctx context.Context, orgID string) ([]AccountingPeriod, error)
	CreatePeriod(ctx context.Context, period AccountingPeriod) error
	UpdatePeriod(ctx context.Context, period AccountingPeriod) error

	// FindOverlapping returns any period of the org whose range intersects
	// [start, end].
	FindOverlapping(ctx context.Context, orgID string, start time.Time, end time.Time) (AccountingPeriod, bool, error)

	GetMemberRole(ctx context.Context, orgID string, actorID string) (Role, bool, error)

	// SumLedgerRange totals the org's ledger inside [start, end] for the
	// close-time balance snapshot.
	SumLedgerRange(ctx context.Context, orgID string, start time.Time, end time.Time) (income decimal.Decimal, expense decimal.Decimal, err error)

	AddAudit(ctx context.Context, entry AuditEntry) error
	ListAudits(ctx context.Context, entityID string) ([]AuditEntry, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

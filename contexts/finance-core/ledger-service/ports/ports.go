package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleTreasurer Role = "treasurer"
	RoleAdmin     Role = "admin"
)

// Elevated roles may mutate entities they did not create and bypass
// workflow-state restrictions.
func (r Role) Elevated() bool {
	return r == RoleTreasurer || r == RoleAdmin
}

type LedgerTransaction struct {
	TransactionID   string
	OrgID           string
	Type            TransactionType
	Amount          decimal.Decimal
	Currency        string
	Description     string
	CategoryID      string
	EffectiveDate   time.Time
	AttachmentPath  string
	SystemGenerated bool
	SourceReportID  string
	CreatedByID     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateTransactionInput struct {
	OrgID          string
	Type           TransactionType
	Amount         decimal.Decimal
	Currency       string
	Description    string
	CategoryID     string
	EffectiveDate  time.Time
	AttachmentPath string
}

type UpdateTransactionInput struct {
	Type           TransactionType
	Amount         decimal.Decimal
	Currency       string
	Description    string
	CategoryID     string
	EffectiveDate  time.Time
	AttachmentPath string
}

type TransactionFilter struct {
	OrgID string
	Type  TransactionType
	From  time.Time
	To    time.Time
}

// ClosedPeriod is the slice of an accounting period the period guard needs:
// enough to name the blocking period in the error message.
type ClosedPeriod struct {
	PeriodID  string
	Type      string
	StartDate time.Time
	EndDate   time.Time
}

// AuditEntry is appended in the same transaction as the mutation it
// documents, so it can never exist without the committed change.
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
	// InActorTx runs fn against a repository bound to one actor-scoped
	// transaction: the actor session variable is asserted before any
	// statement, and an error from fn rolls everything back.
	InActorTx(ctx context.Context, fn func(Repository) error) error

	GetTransaction(ctx context.Context, transactionID string) (LedgerTransaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]LedgerTransaction, error)
	CreateTransaction(ctx context.Context, transaction LedgerTransaction) error
	UpdateTransaction(ctx context.Context, transaction LedgerTransaction) error
	DeleteTransaction(ctx context.Context, transactionID string) error

	GetMemberRole(ctx context.Context, orgID string, actorID string) (Role, bool, error)
	FindClosedPeriodCovering(ctx context.Context, orgID string, date time.Time) (ClosedPeriod, bool, error)

	AddAudit(ctx context.Context, entry AuditEntry) error
	ListAudits(ctx context.Context, entityID string) ([]AuditEntry, error)

	// SumByType recomputes the org's income and expense totals; used by the
	// post-commit integrity check and the worker sweep.
	SumByType(ctx context.Context, orgID string) (income decimal.Decimal, expense decimal.Decimal, err error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

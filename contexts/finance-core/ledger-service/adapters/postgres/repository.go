package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	domainerrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	"caritas/contexts/finance-core/ledger-service/ports"
	"caritas/internal/platform/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	pg      *db.Postgres
	tx      *gorm.DB
	timeout time.Duration
}

func NewRepository(pg *db.Postgres, timeout time.Duration) *Repository {
	return &Repository{pg: pg, timeout: timeout}
}

// InActorTx binds a repository to one actor-scoped transaction. Nested calls
// reuse the enclosing transaction.
func (r *Repository) InActorTx(ctx context.Context, fn func(ports.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return r.pg.ActorTx(ctx, r.timeout, func(tx *gorm.DB) error {
		return fn(&Repository{pg: r.pg, tx: tx, timeout: r.timeout})
	})
}

// run routes an operation through the enclosing transaction when one exists,
// otherwise through the session-scoped proxy so reads outside the mutation
// pattern are still actor-scoped.
func (r *Repository) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.pg.ActorScoped(ctx, fn)
}

func (r *Repository) GetTransaction(ctx context.Context, transactionID string) (ports.LedgerTransaction, error) {
	var row transactionModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("transaction_id = ?", strings.TrimSpace(transactionID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.LedgerTransaction{}, domainerrors.ErrNotFound
		}
		return ports.LedgerTransaction{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]ports.LedgerTransaction, error) {
	var rows []transactionModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		query := tx.Model(&transactionModel{}).
			Where("org_id = ?", strings.TrimSpace(filter.OrgID))
		if filter.Type != "" {
			query = query.Where("type = ?", string(filter.Type))
		}
		if !filter.From.IsZero() {
			query = query.Where("effective_date >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			query = query.Where("effective_date <= ?", filter.To.UTC())
		}
		return query.Order("effective_date DESC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.LedgerTransaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, transaction ports.LedgerTransaction) error {
	row := transactionModelFromEntity(transaction)
	return r.run(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (r *Repository) UpdateTransaction(ctx context.Context, transaction ports.LedgerTransaction) error {
	row := transactionModelFromEntity(transaction)
	return r.run(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&transactionModel{}).
			Where("transaction_id = ?", row.TransactionID).
			Updates(map[string]any{
				"type":            row.Type,
				"amount":          row.Amount,
				"currency":        row.Currency,
				"description":     row.Description,
				"category_id":     row.CategoryID,
				"effective_date":  row.EffectiveDate,
				"attachment_path": row.AttachmentPath,
				"updated_at":      row.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) DeleteTransaction(ctx context.Context, transactionID string) error {
	return r.run(ctx, func(tx *gorm.DB) error {
		result := tx.Where("transaction_id = ?", strings.TrimSpace(transactionID)).
			Delete(&transactionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) GetMemberRole(ctx context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	var row memberModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Where("user_id = ?", strings.TrimSpace(actorID)).
			First(&row).
			Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return ports.Role(row.Role), true, nil
}

func (r *Repository) FindClosedPeriodCovering(ctx context.Context, orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	var row periodProjectionModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Where("status = ?", "closed").
			Where("start_date <= ?", date.UTC()).
			Where("end_date >= ?", date.UTC()).
			First(&row).
			Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ClosedPeriod{}, false, nil
		}
		return ports.ClosedPeriod{}, false, err
	}
	return ports.ClosedPeriod{
		PeriodID:  row.PeriodID,
		Type:      row.Type,
		StartDate: row.StartDate.UTC(),
		EndDate:   row.EndDate.UTC(),
	}, true, nil
}

func (r *Repository) AddAudit(ctx context.Context, entry ports.AuditEntry) error {
	row := auditModel{
		AuditID:    strings.TrimSpace(entry.AuditID),
		ActorID:    strings.TrimSpace(entry.ActorID),
		Action:     strings.TrimSpace(entry.Action),
		EntityType: strings.TrimSpace(entry.EntityType),
		EntityID:   strings.TrimSpace(entry.EntityID),
		Before:     append([]byte(nil), entry.Before...),
		After:      append([]byte(nil), entry.After...),
		Comment:    strings.TrimSpace(entry.Comment),
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.run(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (r *Repository) ListAudits(ctx context.Context, entityID string) ([]ports.AuditEntry, error) {
	var rows []auditModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("entity_id = ?", strings.TrimSpace(entityID)).
			Order("created_at ASC").
			Find(&rows).
			Error
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.AuditEntry{
			AuditID:    row.AuditID,
			ActorID:    row.ActorID,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Before:     append([]byte(nil), row.Before...),
			After:      append([]byte(nil), row.After...),
			Comment:    row.Comment,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) SumByType(ctx context.Context, orgID string) (decimal.Decimal, decimal.Decimal, error) {
	type sumRow struct {
		Type  string
		Total decimal.Decimal
	}
	var rows []sumRow
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Model(&transactionModel{}).
			Select("type, COALESCE(SUM(amount), 0) AS total").
			Where("org_id = ?", strings.TrimSpace(orgID)).
			Group("type").
			Scan(&rows).
			Error
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, row := range rows {
		switch ports.TransactionType(row.Type) {
		case ports.TransactionTypeIncome:
			income = row.Total
		case ports.TransactionTypeExpense:
			expense = row.Total
		}
	}
	return income, expense, nil
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type transactionModel struct {
	TransactionID   string          `gorm:"column:transaction_id;primaryKey"`
	OrgID           string          `gorm:"column:org_id"`
	Type            string          `gorm:"column:type"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Currency        string          `gorm:"column:currency"`
	Description     string          `gorm:"column:description"`
	CategoryID      string          `gorm:"column:category_id"`
	EffectiveDate   time.Time       `gorm:"column:effective_date"`
	AttachmentPath  string          `gorm:"column:attachment_path"`
	SystemGenerated bool            `gorm:"column:system_generated"`
	SourceReportID  string          `gorm:"column:source_report_id"`
	CreatedByID     string          `gorm:"column:created_by_id"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string {
	return "ledger_transactions"
}

func transactionModelFromEntity(item ports.LedgerTransaction) transactionModel {
	return transactionModel{
		TransactionID:   strings.TrimSpace(item.TransactionID),
		OrgID:           strings.TrimSpace(item.OrgID),
		Type:            string(item.Type),
		Amount:          item.Amount,
		Currency:        strings.TrimSpace(item.Currency),
		Description:     strings.TrimSpace(item.Description),
		CategoryID:      strings.TrimSpace(item.CategoryID),
		EffectiveDate:   item.EffectiveDate.UTC(),
		AttachmentPath:  strings.TrimSpace(item.AttachmentPath),
		SystemGenerated: item.SystemGenerated,
		SourceReportID:  strings.TrimSpace(item.SourceReportID),
		CreatedByID:     strings.TrimSpace(item.CreatedByID),
		CreatedAt:       item.CreatedAt.UTC(),
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
}

func (m transactionModel) toEntity() ports.LedgerTransaction {
	return ports.LedgerTransaction{
		TransactionID:   m.TransactionID,
		OrgID:           m.OrgID,
		Type:            ports.TransactionType(m.Type),
		Amount:          m.Amount,
		Currency:        m.Currency,
		Description:     m.Description,
		CategoryID:      m.CategoryID,
		EffectiveDate:   m.EffectiveDate.UTC(),
		AttachmentPath:  m.AttachmentPath,
		SystemGenerated: m.SystemGenerated,
		SourceReportID:  m.SourceReportID,
		CreatedByID:     m.CreatedByID,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type auditModel struct {
	AuditID    string    `gorm:"column:audit_id;primaryKey"`
	ActorID    string    `gorm:"column:actor_id"`
	Action     string    `gorm:"column:action"`
	EntityType string    `gorm:"column:entity_type"`
	EntityID   string    `gorm:"column:entity_id"`
	Before     []byte    `gorm:"column:before"`
	After      []byte    `gorm:"column:after"`
	Comment    string    `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (auditModel) TableName() string {
	return "ledger_audit"
}

type memberModel struct {
	OrgID  string `gorm:"column:org_id;primaryKey"`
	UserID string `gorm:"column:user_id;primaryKey"`
	Role   string `gorm:"column:role"`
}

func (memberModel) TableName() string {
	return "org_members"
}

type periodProjectionModel struct {
	PeriodID  string    `gorm:"column:period_id;primaryKey"`
	OrgID     string    `gorm:"column:org_id"`
	Type      string    `gorm:"column:type"`
	StartDate time.Time `gorm:"column:start_date"`
	EndDate   time.Time `gorm:"column:end_date"`
	Status    string    `gorm:"column:status"`
}

func (periodProjectionModel) TableName() string {
	return "accounting_periods"
}

package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	domainerrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	"caritas/contexts/finance-core/accounting-period-service/ports"
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

func (r *Repository) InActorTx(ctx context.Context, fn func(ports.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return r.pg.ActorTx(ctx, r.timeout, func(tx *gorm.DB) error {
		return fn(&Repository{pg: r.pg, tx: tx, timeout: r.timeout})
	})
}

func (r *Repository) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.pg.ActorScoped(ctx, fn)
}

func (r *Repository) GetPeriod(ctx context.Context, periodID string) (ports.AccountingPeriod, error) {
	var row periodModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("period_id = ?", strings.TrimSpace(periodID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AccountingPeriod{}, domainerrors.ErrNotFound
		}
		return ports.AccountingPeriod{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListPeriods(ctx context.Context, orgID string) ([]ports.AccountingPeriod, error) {
	var rows []periodModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Order("start_date ASC").
			Find(&rows).
			Error
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.AccountingPeriod, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreatePeriod(ctx context.Context, period ports.AccountingPeriod) error {
	row := periodModelFromEntity(period)
	return r.run(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (r *Repository) UpdatePeriod(ctx context.Context, period ports.AccountingPeriod) error {
	row := periodModelFromEntity(period)
	return r.run(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&periodModel{}).
			Where("period_id = ?", row.PeriodID).
			Updates(map[string]any{
				"status":       row.Status,
				"closed_at":    row.ClosedAt,
				"closed_by_id": row.ClosedByID,
				"snapshot":     row.Snapshot,
				"updated_at":   row.UpdatedAt,
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

func (r *Repository) FindOverlapping(ctx context.Context, orgID string, start time.Time, end time.Time) (ports.AccountingPeriod, bool, error) {
	var row periodModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Where("start_date <= ?", end.UTC()).
			Where("end_date >= ?", start.UTC()).
			First(&row).
			Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AccountingPeriod{}, false, nil
		}
		return ports.AccountingPeriod{}, false, err
	}
	return row.toEntity(), true, nil
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

func (r *Repository) SumLedgerRange(ctx context.Context, orgID string, start time.Time, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	type sumRow struct {
		Type  string
		Total decimal.Decimal
	}
	var rows []sumRow
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Table("ledger_transactions").
			Select("type, COALESCE(SUM(amount), 0) AS total").
			Where("org_id = ?", strings.TrimSpace(orgID)).
			Where("effective_date >= ?", start.UTC()).
			Where("effective_date <= ?", end.UTC()).
			Group("type").
			Scan(&rows).
			Error
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, row := range rows {
		switch row.Type {
		case "income":
			income = row.Total
		case "expense":
			expense = row.Total
		}
	}
	return income, expense, nil
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

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type periodModel struct {
	PeriodID   string     `gorm:"column:period_id;primaryKey"`
	OrgID      string     `gorm:"column:org_id"`
	Type       string     `gorm:"column:type"`
	StartDate  time.Time  `gorm:"column:start_date"`
	EndDate    time.Time  `gorm:"column:end_date"`
	Status     string     `gorm:"column:status"`
	ClosedAt   *time.Time `gorm:"column:closed_at"`
	ClosedByID string     `gorm:"column:closed_by_id"`
	Snapshot   []byte     `gorm:"column:snapshot"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (periodModel) TableName() string {
	return "accounting_periods"
}

func periodModelFromEntity(item ports.AccountingPeriod) periodModel {
	var closedAt *time.Time
	if item.ClosedAt != nil {
		value := item.ClosedAt.UTC()
		closedAt = &value
	}
	return periodModel{
		PeriodID:   strings.TrimSpace(item.PeriodID),
		OrgID:      strings.TrimSpace(item.OrgID),
		Type:       string(item.Type),
		StartDate:  item.StartDate.UTC(),
		EndDate:    item.EndDate.UTC(),
		Status:     string(item.Status),
		ClosedAt:   closedAt,
		ClosedByID: strings.TrimSpace(item.ClosedByID),
		Snapshot:   append([]byte(nil), item.Snapshot...),
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
}

func (m periodModel) toEntity() ports.AccountingPeriod {
	var closedAt *time.Time
	if m.ClosedAt != nil {
		value := m.ClosedAt.UTC()
		closedAt = &value
	}
	return ports.AccountingPeriod{
		PeriodID:   m.PeriodID,
		OrgID:      m.OrgID,
		Type:       ports.PeriodType(m.Type),
		StartDate:  m.StartDate.UTC(),
		EndDate:    m.EndDate.UTC(),
		Status:     ports.PeriodStatus(m.Status),
		ClosedAt:   closedAt,
		ClosedByID: m.ClosedByID,
		Snapshot:   append([]byte(nil), m.Snapshot...),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
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
	return "period_audit"
}

type memberModel struct {
	OrgID  string `gorm:"column:org_id;primaryKey"`
	UserID string `gorm:"column:user_id;primaryKey"`
	Role   string `gorm:"column:role"`
}

func (memberModel) TableName() string {
	return "org_members"
}

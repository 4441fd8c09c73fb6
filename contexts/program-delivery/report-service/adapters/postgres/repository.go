package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	domainerrors "caritas/contexts/program-delivery/report-service/domain/errors"
	"caritas/contexts/program-delivery/report-service/ports"
	"caritas/internal/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
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

func (r *Repository) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.pg.ActorScoped(ctx, fn)
}

func (r *Repository) GetReport(ctx context.Context, reportID string) (ports.ActivityReport, error) {
	var row reportModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("report_id = ?", strings.TrimSpace(reportID)).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ActivityReport{}, domainerrors.ErrNotFound
		}
		return ports.ActivityReport{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListReports(ctx context.Context, orgID string) ([]ports.ActivityReport, error) {
	var rows []reportModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Order("created_at DESC").
			Find(&rows).
			Error
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.ActivityReport, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateReport(ctx context.Context, report ports.ActivityReport) error {
	row := reportModelFromEntity(report)
	return r.run(ctx, func(tx *gorm.DB) error {
		err := tx.Create(&row).Error
		if isUniqueViolation(err) {
			// The activity_id unique index raced with a concurrent insert.
			return domainerrors.ErrDuplicateReport
		}
		return err
	})
}

func (r *Repository) UpdateReport(ctx context.Context, report ports.ActivityReport) error {
	row := reportModelFromEntity(report)
	return r.run(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&reportModel{}).
			Where("report_id = ?", row.ReportID).
			Updates(map[string]any{
				"title":          row.Title,
				"summary":        row.Summary,
				"total_expense":  row.TotalExpense,
				"currency":       row.Currency,
				"status":         row.Status,
				"approved_by_id": row.ApprovedByID,
				"approved_at":    row.ApprovedAt,
				"updated_at":     row.UpdatedAt,
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

func (r *Repository) FindReportByActivity(ctx context.Context, orgID string, activityID string) (ports.ActivityReport, bool, error) {
	var row reportModel
	err := r.run(ctx, func(tx *gorm.DB) error {
		return tx.Where("org_id = ?", strings.TrimSpace(orgID)).
			Where("activity_id = ?", strings.TrimSpace(activityID)).
			First(&row).
			Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ActivityReport{}, false, nil
		}
		return ports.ActivityReport{}, false, err
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

func (r *Repository) SpawnLedgerTransaction(ctx context.Context, transaction ports.SpawnedTransaction) error {
	row := ledgerProjectionModel{
		TransactionID:   strings.TrimSpace(transaction.TransactionID),
		OrgID:           strings.TrimSpace(transaction.OrgID),
		Type:            "expense",
		Amount:          transaction.Amount,
		Currency:        strings.TrimSpace(transaction.Currency),
		Description:     strings.TrimSpace(transaction.Description),
		EffectiveDate:   transaction.EffectiveDate.UTC(),
		SystemGenerated: true,
		SourceReportID:  strings.TrimSpace(transaction.SourceReportID),
		CreatedByID:     strings.TrimSpace(transaction.CreatedByID),
		CreatedAt:       transaction.CreatedAt.UTC(),
		UpdatedAt:       transaction.UpdatedAt.UTC(),
	}
	return r.run(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type reportModel struct {
	ReportID     string          `gorm:"column:report_id;primaryKey"`
	OrgID        string          `gorm:"column:org_id"`
	ActivityID   string          `gorm:"column:activity_id;uniqueIndex:idx_activity_report"`
	Title        string          `gorm:"column:title"`
	Summary      string          `gorm:"column:summary"`
	TotalExpense decimal.Decimal `gorm:"column:total_expense;type:numeric(14,2)"`
	Currency     string          `gorm:"column:currency"`
	Status       string          `gorm:"column:status"`
	CreatedByID  string          `gorm:"column:created_by_id"`
	ApprovedByID string          `gorm:"column:approved_by_id"`
	ApprovedAt   *time.Time      `gorm:"column:approved_at"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (reportModel) TableName() string {
	return "activity_reports"
}

func reportModelFromEntity(item ports.ActivityReport) reportModel {
	row := reportModel{
		ReportID:     strings.TrimSpace(item.ReportID),
		OrgID:        strings.TrimSpace(item.OrgID),
		ActivityID:   strings.TrimSpace(item.ActivityID),
		Title:        strings.TrimSpace(item.Title),
		Summary:      strings.TrimSpace(item.Summary),
		TotalExpense: item.TotalExpense,
		Currency:     strings.TrimSpace(item.Currency),
		Status:       string(item.Status),
		CreatedByID:  strings.TrimSpace(item.CreatedByID),
		ApprovedByID: strings.TrimSpace(item.ApprovedByID),
		CreatedAt:    item.CreatedAt.UTC(),
		UpdatedAt:    item.UpdatedAt.UTC(),
	}
	if item.ApprovedAt != nil {
		at := item.ApprovedAt.UTC()
		row.ApprovedAt = &at
	}
	return row
}

func (m reportModel) toEntity() ports.ActivityReport {
	item := ports.ActivityReport{
		ReportID:     m.ReportID,
		OrgID:        m.OrgID,
		ActivityID:   m.ActivityID,
		Title:        m.Title,
		Summary:      m.Summary,
		TotalExpense: m.TotalExpense,
		Currency:     m.Currency,
		Status:       ports.ReportStatus(m.Status),
		CreatedByID:  m.CreatedByID,
		ApprovedByID: m.ApprovedByID,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.ApprovedAt != nil {
		at := m.ApprovedAt.UTC()
		item.ApprovedAt = &at
	}
	return item
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
	return "report_audit"
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

type ledgerProjectionModel struct {
	TransactionID   string          `gorm:"column:transaction_id;primaryKey"`
	OrgID           string          `gorm:"column:org_id"`
	Type            string          `gorm:"column:type"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Currency        string          `gorm:"column:currency"`
	Description     string          `gorm:"column:description"`
	EffectiveDate   time.Time       `gorm:"column:effective_date"`
	SystemGenerated bool            `gorm:"column:system_generated"`
	SourceReportID  string          `gorm:"column:source_report_id"`
	CreatedByID     string          `gorm:"column:created_by_id"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (ledgerProjectionModel) TableName() string {
	return "ledger_transactions"
}

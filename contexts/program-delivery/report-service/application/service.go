package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "caritas/contexts/program-delivery/report-service/domain/errors"
	"caritas/contexts/program-delivery/report-service/ports"
	"caritas/internal/platform/actorctx"
	"caritas/internal/platform/messaging"
	"caritas/internal/shared/events"

	"github.com/google/uuid"
)

const entityTypeReport = "activity_report"

type Service struct {
	Repo      ports.Repository
	Publisher messaging.Publisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Topic     string
	Logger    *slog.Logger
}

func (s Service) CreateReport(ctx context.Context, input ports.CreateReportInput) (ports.ActivityReport, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrUnauthorized
	}
	if !isValidCreateInput(input) {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}

	reportID, err := s.newID(ctx)
	if err != nil {
		return ports.ActivityReport{}, err
	}
	now := s.now()
	report := ports.ActivityReport{
		ReportID:     reportID,
		OrgID:        strings.TrimSpace(input.OrgID),
		ActivityID:   strings.TrimSpace(input.ActivityID),
		Title:        strings.TrimSpace(input.Title),
		Summary:      strings.TrimSpace(input.Summary),
		TotalExpense: input.TotalExpense,
		Currency:     strings.ToUpper(strings.TrimSpace(input.Currency)),
		Status:       ports.ReportStatusDraft,
		CreatedByID:  actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		if _, err := s.requireMembership(ctx, r, report.OrgID, actorID); err != nil {
			return err
		}
		if existing, found, err := r.FindReportByActivity(ctx, report.OrgID, report.ActivityID); err != nil {
			return err
		} else if found {
			return fmt.Errorf("%w: activity %s is covered by report %s",
				domainerrors.ErrDuplicateReport, report.ActivityID, existing.ReportID)
		}
		if err := r.CreateReport(ctx, report); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "create_report", report.ReportID, nil, report,
			fmt.Sprintf("created report for activity %s", report.ActivityID))
	})
	if err != nil {
		return ports.ActivityReport{}, err
	}

	s.notify(ctx, actorID, "report.created", report)
	return report, nil
}

func (s Service) UpdateReport(ctx context.Context, reportID string, input ports.UpdateReportInput) (ports.ActivityReport, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(reportID) == "" || !isValidUpdateInput(input) {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}

	var updated ports.ActivityReport
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		role, err := s.requireMembership(ctx, r, before.OrgID, actorID)
		if err != nil {
			return err
		}
		if before.CreatedByID != actorID && !role.Elevated() {
			return domainerrors.ErrForbidden
		}
		if err := guardEditable(before.Status, role); err != nil {
			return err
		}

		updated = before
		updated.Title = strings.TrimSpace(input.Title)
		updated.Summary = strings.TrimSpace(input.Summary)
		updated.TotalExpense = input.TotalExpense
		updated.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
		updated.UpdatedAt = s.now()

		if err := r.UpdateReport(ctx, updated); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "update_report", updated.ReportID, &before, updated,
			fmt.Sprintf("updated report for activity %s", updated.ActivityID))
	})
	if err != nil {
		return ports.ActivityReport{}, err
	}

	s.notify(ctx, actorID, "report.updated", updated)
	return updated, nil
}

func (s Service) SubmitReport(ctx context.Context, reportID string) (ports.ActivityReport, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(reportID) == "" {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}

	var submitted ports.ActivityReport
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		role, err := s.requireMembership(ctx, r, before.OrgID, actorID)
		if err != nil {
			return err
		}
		if before.CreatedByID != actorID && !role.Elevated() {
			return domainerrors.ErrForbidden
		}
		if err := guardEditable(before.Status, role); err != nil {
			return err
		}

		submitted = before
		submitted.Status = ports.ReportStatusSubmitted
		submitted.UpdatedAt = s.now()

		if err := r.UpdateReport(ctx, submitted); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "submit_report", submitted.ReportID, &before, submitted,
			fmt.Sprintf("submitted report for activity %s", submitted.ActivityID))
	})
	if err != nil {
		return ports.ActivityReport{}, err
	}

	s.notify(ctx, actorID, "report.submitted", submitted)
	return submitted, nil
}

// ApproveReport finalizes a submitted report and books its total as a
// system-generated ledger expense. Both writes happen in one transaction,
// and the booking date must not fall inside a closed accounting period.
func (s Service) ApproveReport(ctx context.Context, reportID string) (ports.ActivityReport, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(reportID) == "" {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}

	var approved ports.ActivityReport
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if err := s.requireElevated(ctx, r, before.OrgID, actorID); err != nil {
			return err
		}
		if before.Status != ports.ReportStatusSubmitted {
			return fmt.Errorf("%w: report %s is %s, approval requires %s",
				domainerrors.ErrInvalidStatus, before.ReportID, before.Status, ports.ReportStatusSubmitted)
		}

		now := s.now()
		if period, found, err := r.FindClosedPeriodCovering(ctx, before.OrgID, now); err != nil {
			return err
		} else if found {
			return fmt.Errorf("%w: %s period %s (%s to %s) blocks approve_report",
				domainerrors.ErrPeriodClosed,
				period.Type,
				period.PeriodID,
				period.StartDate.UTC().Format("2006-01-02"),
				period.EndDate.UTC().Format("2006-01-02"),
			)
		}

		approved = before
		approved.Status = ports.ReportStatusApproved
		approved.ApprovedByID = actorID
		approved.ApprovedAt = &now
		approved.UpdatedAt = now

		if err := r.UpdateReport(ctx, approved); err != nil {
			return err
		}

		transactionID, err := s.newID(ctx)
		if err != nil {
			return err
		}
		spawned := ports.SpawnedTransaction{
			TransactionID:  transactionID,
			OrgID:          approved.OrgID,
			Amount:         approved.TotalExpense,
			Currency:       approved.Currency,
			Description:    fmt.Sprintf("expense booked from approved report %s", approved.ReportID),
			EffectiveDate:  now,
			SourceReportID: approved.ReportID,
			CreatedByID:    actorID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.SpawnLedgerTransaction(ctx, spawned); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "approve_report", approved.ReportID, &before, approved,
			fmt.Sprintf("approved report, booked expense %s %s as transaction %s",
				spawned.Amount.StringFixed(2), spawned.Currency, spawned.TransactionID))
	})
	if err != nil {
		return ports.ActivityReport{}, err
	}

	s.notify(ctx, actorID, "report.approved", approved)
	return approved, nil
}

func (s Service) RejectReport(ctx context.Context, reportID string, reason string) (ports.ActivityReport, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(reportID) == "" {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}

	var rejected ports.ActivityReport
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if err := s.requireElevated(ctx, r, before.OrgID, actorID); err != nil {
			return err
		}
		if before.Status != ports.ReportStatusSubmitted {
			return fmt.Errorf("%w: report %s is %s, rejection requires %s",
				domainerrors.ErrInvalidStatus, before.ReportID, before.Status, ports.ReportStatusSubmitted)
		}

		rejected = before
		rejected.Status = ports.ReportStatusRejected
		rejected.UpdatedAt = s.now()

		if err := r.UpdateReport(ctx, rejected); err != nil {
			return err
		}
		comment := "rejected report"
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			comment = "rejected report: " + trimmed
		}
		return s.addAudit(ctx, r, actorID, "reject_report", rejected.ReportID, &before, rejected, comment)
	})
	if err != nil {
		return ports.ActivityReport{}, err
	}

	s.notify(ctx, actorID, "report.rejected", rejected)
	return rejected, nil
}

func (s Service) GetReport(ctx context.Context, reportID string) (ports.ActivityReport, error) {
	if strings.TrimSpace(reportID) == "" {
		return ports.ActivityReport{}, domainerrors.ErrInvalidInput
	}
	return s.Repo.GetReport(ctx, strings.TrimSpace(reportID))
}

func (s Service) ListReports(ctx context.Context, orgID string) ([]ports.ActivityReport, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListReports(ctx, strings.TrimSpace(orgID))
}

func (s Service) ListAudits(ctx context.Context, reportID string) ([]ports.AuditEntry, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListAudits(ctx, strings.TrimSpace(reportID))
}

func (s Service) requireMembership(ctx context.Context, r ports.Repository, orgID string, actorID string) (ports.Role, error) {
	role, found, err := r.GetMemberRole(ctx, orgID, actorID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", domainerrors.ErrForbidden
	}
	return role, nil
}

func (s Service) requireElevated(ctx context.Context, r ports.Repository, orgID string, actorID string) error {
	role, err := s.requireMembership(ctx, r, orgID, actorID)
	if err != nil {
		return err
	}
	if !role.Elevated() {
		return domainerrors.ErrForbidden
	}
	return nil
}

// guardEditable allows edits and submission only while the report is in
// draft or rejected state. Elevated roles may also touch submitted reports,
// but approved reports are frozen for everyone.
func guardEditable(status ports.ReportStatus, role ports.Role) error {
	switch status {
	case ports.ReportStatusDraft, ports.ReportStatusRejected:
		return nil
	case ports.ReportStatusSubmitted:
		if role.Elevated() {
			return nil
		}
		return fmt.Errorf("%w: report is %s", domainerrors.ErrInvalidStatus, status)
	default:
		return fmt.Errorf("%w: report is %s", domainerrors.ErrInvalidStatus, status)
	}
}

func (s Service) addAudit(
	ctx context.Context,
	r ports.Repository,
	actorID string,
	action string,
	entityID string,
	before *ports.ActivityReport,
	after any,
	comment string,
) error {
	auditID, err := s.newID(ctx)
	if err != nil {
		return err
	}
	entry := ports.AuditEntry{
		AuditID:    auditID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityTypeReport,
		EntityID:   entityID,
		Comment:    comment,
		CreatedAt:  s.now(),
	}
	if before != nil {
		entry.Before, _ = json.Marshal(before)
	}
	if after != nil {
		entry.After, _ = json.Marshal(after)
	}
	return r.AddAudit(ctx, entry)
}

func (s Service) notify(ctx context.Context, actorID string, eventType string, report ports.ActivityReport) {
	if s.Publisher == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"report_id":     report.ReportID,
		"org_id":        report.OrgID,
		"activity_id":   report.ActivityID,
		"status":        string(report.Status),
		"total_expense": report.TotalExpense.StringFixed(2),
		"currency":      report.Currency,
	})
	envelope := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SourceService: "report-service",
		OccurredAtUTC: s.now(),
		ActorID:       actorID,
		EntityType:    entityTypeReport,
		EntityID:      report.ReportID,
		Data:          data,
	}
	if err := s.Publisher.Publish(ctx, s.Topic, envelope); err != nil {
		s.log().Warn("notification publish failed",
			"event", "report_notification_failed",
			"module", "program-delivery/report-service",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGen == nil {
		return uuid.NewString(), nil
	}
	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(id), nil
}

func (s Service) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func isValidCreateInput(input ports.CreateReportInput) bool {
	return strings.TrimSpace(input.OrgID) != "" &&
		strings.TrimSpace(input.ActivityID) != "" &&
		strings.TrimSpace(input.Title) != "" &&
		!input.TotalExpense.IsNegative() &&
		strings.TrimSpace(input.Currency) != ""
}

func isValidUpdateInput(input ports.UpdateReportInput) bool {
	return strings.TrimSpace(input.Title) != "" &&
		!input.TotalExpense.IsNegative() &&
		strings.TrimSpace(input.Currency) != ""
}

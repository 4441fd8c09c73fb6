package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	"caritas/contexts/finance-core/accounting-period-service/ports"
	"caritas/internal/platform/actorctx"
	"caritas/internal/platform/messaging"
	"caritas/internal/shared/events"

	"github.com/google/uuid"
)

const entityTypePeriod = "accounting_period"

type Service struct {
	Repo      ports.Repository
	Publisher messaging.Publisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Topic     string
	Logger    *slog.Logger
}

func (s Service) CreatePeriod(ctx context.Context, input ports.CreatePeriodInput) (ports.AccountingPeriod, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.AccountingPeriod{}, domainerrors.ErrUnauthorized
	}
	if !isValidCreateInput(input) {
		return ports.AccountingPeriod{}, domainerrors.ErrInvalidInput
	}

	periodID, err := s.newID(ctx)
	if err != nil {
		return ports.AccountingPeriod{}, err
	}
	now := s.now()
	period := ports.AccountingPeriod{
		PeriodID:  periodID,
		OrgID:     strings.TrimSpace(input.OrgID),
		Type:      input.Type,
		StartDate: input.StartDate.UTC(),
		EndDate:   input.EndDate.UTC(),
		Status:    ports.PeriodStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		if err := s.requireElevated(ctx, r, period.OrgID, actorID); err != nil {
			return err
		}
		existing, found, err := r.FindOverlapping(ctx, period.OrgID, period.StartDate, period.EndDate)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: period %s (%s to %s)",
				domainerrors.ErrOverlap,
				existing.PeriodID,
				existing.StartDate.UTC().Format("2006-01-02"),
				existing.EndDate.UTC().Format("2006-01-02"),
			)
		}
		if err := r.CreatePeriod(ctx, period); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "create_period", period.PeriodID, nil, period,
			fmt.Sprintf("created %s period %s to %s", period.Type,
				period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")))
	})
	if err != nil {
		return ports.AccountingPeriod{}, err
	}

	s.notify(ctx, actorID, "period.created", period)
	return period, nil
}

func (s Service) ClosePeriod(ctx context.Context, periodID string) (ports.AccountingPeriod, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.AccountingPeriod{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(periodID) == "" {
		return ports.AccountingPeriod{}, domainerrors.ErrInvalidInput
	}

	var closed ports.AccountingPeriod
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if err := s.requireElevated(ctx, r, before.OrgID, actorID); err != nil {
			return err
		}
		if before.Status != ports.PeriodStatusOpen {
			return fmt.Errorf("%w: cannot close a %s period", domainerrors.ErrInvalidStatus, before.Status)
		}

		income, expense, err := r.SumLedgerRange(ctx, before.OrgID, before.StartDate, before.EndDate)
		if err != nil {
			return err
		}
		now := s.now()
		snapshot, _ := json.Marshal(ports.BalanceSnapshot{
			TotalIncome:  income.StringFixed(2),
			TotalExpense: expense.StringFixed(2),
			Net:          income.Sub(expense).StringFixed(2),
			ComputedAt:   now.Format(time.RFC3339),
		})

		closed = before
		closed.Status = ports.PeriodStatusClosed
		closed.ClosedAt = &now
		closed.ClosedByID = actorID
		closed.Snapshot = snapshot
		closed.UpdatedAt = now

		if err := r.UpdatePeriod(ctx, closed); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "close_period", closed.PeriodID, &before, closed,
			fmt.Sprintf("closed %s period %s to %s", closed.Type,
				closed.StartDate.Format("2006-01-02"), closed.EndDate.Format("2006-01-02")))
	})
	if err != nil {
		return ports.AccountingPeriod{}, err
	}

	s.notify(ctx, actorID, "period.closed", closed)
	return closed, nil
}

func (s Service) ReopenPeriod(ctx context.Context, periodID string) (ports.AccountingPeriod, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.AccountingPeriod{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(periodID) == "" {
		return ports.AccountingPeriod{}, domainerrors.ErrInvalidInput
	}

	var reopened ports.AccountingPeriod
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		// Reopening unfreezes the books; only admins may do it.
		role, found, err := r.GetMemberRole(ctx, before.OrgID, actorID)
		if err != nil {
			return err
		}
		if !found || role != ports.RoleAdmin {
			return domainerrors.ErrForbidden
		}
		if before.Status != ports.PeriodStatusClosed {
			return fmt.Errorf("%w: cannot reopen an %s period", domainerrors.ErrInvalidStatus, before.Status)
		}

		reopened = before
		reopened.Status = ports.PeriodStatusOpen
		reopened.ClosedAt = nil
		reopened.ClosedByID = ""
		reopened.Snapshot = nil
		reopened.UpdatedAt = s.now()

		if err := r.UpdatePeriod(ctx, reopened); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "reopen_period", reopened.PeriodID, &before, reopened,
			fmt.Sprintf("reopened %s period %s to %s", reopened.Type,
				reopened.StartDate.Format("2006-01-02"), reopened.EndDate.Format("2006-01-02")))
	})
	if err != nil {
		return ports.AccountingPeriod{}, err
	}

	s.notify(ctx, actorID, "period.reopened", reopened)
	return reopened, nil
}

func (s Service) GetPeriod(ctx context.Context, periodID string) (ports.AccountingPeriod, error) {
	if strings.TrimSpace(periodID) == "" {
		return ports.AccountingPeriod{}, domainerrors.ErrInvalidInput
	}
	return s.Repo.GetPeriod(ctx, strings.TrimSpace(periodID))
}

func (s Service) ListPeriods(ctx context.Context, orgID string) ([]ports.AccountingPeriod, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListPeriods(ctx, strings.TrimSpace(orgID))
}

func (s Service) ListAudits(ctx context.Context, periodID string) ([]ports.AuditEntry, error) {
	if strings.TrimSpace(periodID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListAudits(ctx, strings.TrimSpace(periodID))
}

func (s Service) requireElevated(ctx context.Context, r ports.Repository, orgID string, actorID string) error {
	role, found, err := r.GetMemberRole(ctx, orgID, actorID)
	if err != nil {
		return err
	}
	if !found || !role.Elevated() {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (s Service) addAudit(
	ctx context.Context,
	r ports.Repository,
	actorID string,
	action string,
	entityID string,
	before *ports.AccountingPeriod,
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
		EntityType: entityTypePeriod,
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

func (s Service) notify(ctx context.Context, actorID string, eventType string, period ports.AccountingPeriod) {
	if s.Publisher == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"period_id":  period.PeriodID,
		"org_id":     period.OrgID,
		"type":       string(period.Type),
		"status":     string(period.Status),
		"start_date": period.StartDate.UTC().Format("2006-01-02"),
		"end_date":   period.EndDate.UTC().Format("2006-01-02"),
	})
	envelope := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SourceService: "accounting-period-service",
		OccurredAtUTC: s.now(),
		ActorID:       actorID,
		EntityType:    entityTypePeriod,
		EntityID:      period.PeriodID,
		Data:          data,
	}
	if err := s.Publisher.Publish(ctx, s.Topic, envelope); err != nil {
		s.log().Warn("notification publish failed",
			"event", "period_notification_failed",
			"module", "finance-core/accounting-period-service",
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

func isValidCreateInput(input ports.CreatePeriodInput) bool {
	if strings.TrimSpace(input.OrgID) == "" {
		return false
	}
	switch input.Type {
	case ports.PeriodTypeMonth, ports.PeriodTypeQuarter, ports.PeriodTypeYear:
	default:
		return false
	}
	return !input.StartDate.IsZero() &&
		!input.EndDate.IsZero() &&
		!input.EndDate.Before(input.StartDate)
}

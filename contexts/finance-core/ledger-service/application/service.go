package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	"caritas/contexts/finance-core/ledger-service/ports"
	"caritas/internal/platform/actorctx"
	"caritas/internal/platform/messaging"
	"caritas/internal/platform/storage"
	"caritas/internal/shared/events"

	"github.com/google/uuid"
)

const entityTypeTransaction = "ledger_transaction"

type Service struct {
	Repo      ports.Repository
	Storage   storage.AttachmentStore
	Publisher messaging.Publisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Topic     string
	Logger    *slog.Logger
}

func (s Service) CreateTransaction(ctx context.Context, input ports.CreateTransactionInput) (ports.LedgerTransaction, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.LedgerTransaction{}, domainerrors.ErrUnauthorized
	}
	if !isValidCreateInput(input) {
		return ports.LedgerTransaction{}, domainerrors.ErrInvalidInput
	}

	transactionID, err := s.newID(ctx)
	if err != nil {
		return ports.LedgerTransaction{}, err
	}
	now := s.now()
	transaction := ports.LedgerTransaction{
		TransactionID:  transactionID,
		OrgID:          strings.TrimSpace(input.OrgID),
		Type:           input.Type,
		Amount:         input.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		Description:    strings.TrimSpace(input.Description),
		CategoryID:     strings.TrimSpace(input.CategoryID),
		EffectiveDate:  input.EffectiveDate.UTC(),
		AttachmentPath: strings.TrimSpace(input.AttachmentPath),
		CreatedByID:    actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		if _, err := s.requireMembership(ctx, r, transaction.OrgID, actorID); err != nil {
			return err
		}
		if err := s.guardPeriod(ctx, r, transaction.OrgID, transaction.EffectiveDate, "create_transaction"); err != nil {
			return err
		}
		if err := r.CreateTransaction(ctx, transaction); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "create_transaction", transaction.TransactionID, nil, transaction,
			fmt.Sprintf("created %s transaction of %s %s", transaction.Type, transaction.Amount.StringFixed(2), transaction.Currency))
	})
	if err != nil {
		s.rollbackAttachment(ctx, transaction.AttachmentPath)
		return ports.LedgerTransaction{}, err
	}

	s.afterCommit(ctx, actorID, "ledger.transaction.created", transaction)
	return transaction, nil
}

func (s Service) UpdateTransaction(ctx context.Context, transactionID string, input ports.UpdateTransactionInput) (ports.LedgerTransaction, error) {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ports.LedgerTransaction{}, domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(transactionID) == "" || !isValidUpdateInput(input) {
		return ports.LedgerTransaction{}, domainerrors.ErrInvalidInput
	}

	var updated ports.LedgerTransaction
	var newAttachment string
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetTransaction(ctx, transactionID)
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
		if before.SystemGenerated {
			return domainerrors.ErrTransactionImmutable
		}
		// Both the old and the new effective date must fall outside closed
		// periods: moving a row out of a frozen period is still a mutation
		// of that period's books.
		if err := s.guardPeriod(ctx, r, before.OrgID, before.EffectiveDate, "update_transaction"); err != nil {
			return err
		}
		if err := s.guardPeriod(ctx, r, before.OrgID, input.EffectiveDate.UTC(), "update_transaction"); err != nil {
			return err
		}

		updated = before
		updated.Type = input.Type
		updated.Amount = input.Amount
		updated.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
		updated.Description = strings.TrimSpace(input.Description)
		updated.CategoryID = strings.TrimSpace(input.CategoryID)
		updated.EffectiveDate = input.EffectiveDate.UTC()
		if path := strings.TrimSpace(input.AttachmentPath); path != "" && path != before.AttachmentPath {
			newAttachment = path
			updated.AttachmentPath = path
		}
		updated.UpdatedAt = s.now()

		if err := r.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "update_transaction", updated.TransactionID, &before, updated,
			fmt.Sprintf("updated %s transaction to %s %s", updated.Type, updated.Amount.StringFixed(2), updated.Currency))
	})
	if err != nil {
		s.rollbackAttachment(ctx, newAttachment)
		return ports.LedgerTransaction{}, err
	}

	s.afterCommit(ctx, actorID, "ledger.transaction.updated", updated)
	return updated, nil
}

func (s Service) DeleteTransaction(ctx context.Context, transactionID string) error {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return domainerrors.ErrUnauthorized
	}
	if strings.TrimSpace(transactionID) == "" {
		return domainerrors.ErrInvalidInput
	}

	var removed ports.LedgerTransaction
	err := s.Repo.InActorTx(ctx, func(r ports.Repository) error {
		before, err := r.GetTransaction(ctx, transactionID)
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
		if before.SystemGenerated {
			return domainerrors.ErrTransactionImmutable
		}
		if err := s.guardPeriod(ctx, r, before.OrgID, before.EffectiveDate, "delete_transaction"); err != nil {
			return err
		}

		removed = before
		if err := r.DeleteTransaction(ctx, transactionID); err != nil {
			return err
		}
		return s.addAudit(ctx, r, actorID, "delete_transaction", before.TransactionID, &before, nil,
			fmt.Sprintf("deleted %s transaction of %s %s", before.Type, before.Amount.StringFixed(2), before.Currency))
	})
	if err != nil {
		return err
	}

	if removed.AttachmentPath != "" && s.Storage != nil {
		if err := s.Storage.Delete(ctx, removed.AttachmentPath, storage.DeleteOptions{}); err != nil {
			s.log().Warn("orphaned attachment cleanup failed",
				"event", "ledger_attachment_cleanup_failed",
				"module", "finance-core/ledger-service",
				"layer", "application",
				"path", removed.AttachmentPath,
				"error", err.Error(),
			)
		}
	}
	s.afterCommit(ctx, actorID, "ledger.transaction.deleted", removed)
	return nil
}

func (s Service) GetTransaction(ctx context.Context, transactionID string) (ports.LedgerTransaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return ports.LedgerTransaction{}, domainerrors.ErrInvalidInput
	}
	return s.Repo.GetTransaction(ctx, strings.TrimSpace(transactionID))
}

func (s Service) ListTransactions(ctx context.Context, filter ports.TransactionFilter) ([]ports.LedgerTransaction, error) {
	if strings.TrimSpace(filter.OrgID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListTransactions(ctx, filter)
}

func (s Service) ListAudits(ctx context.Context, entityID string) ([]ports.AuditEntry, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return s.Repo.ListAudits(ctx, strings.TrimSpace(entityID))
}

// CheckBalanceIntegrity recomputes the org's derived balance and logs it.
// Drift below zero is flagged but never turned into an error: this runs
// post-commit and from the worker sweep.
func (s Service) CheckBalanceIntegrity(ctx context.Context, orgID string) {
	income, expense, err := s.Repo.SumByType(ctx, orgID)
	if err != nil {
		s.log().Warn("balance integrity check failed",
			"event", "ledger_integrity_check_failed",
			"module", "finance-core/ledger-service",
			"layer", "application",
			"org_id", orgID,
			"error", err.Error(),
		)
		return
	}
	balance := income.Sub(expense)
	if balance.IsNegative() {
		s.log().Warn("derived balance is negative",
			"event", "ledger_balance_negative",
			"module", "finance-core/ledger-service",
			"layer", "application",
			"org_id", orgID,
			"balance", balance.StringFixed(2),
		)
		return
	}
	s.log().Info("derived balance recomputed",
		"event", "ledger_balance_recomputed",
		"module", "finance-core/ledger-service",
		"layer", "application",
		"org_id", orgID,
		"balance", balance.StringFixed(2),
	)
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

func (s Service) guardPeriod(ctx context.Context, r ports.Repository, orgID string, date time.Time, action string) error {
	period, found, err := r.FindClosedPeriodCovering(ctx, orgID, date)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s period %s (%s to %s) blocks %s",
			domainerrors.ErrPeriodClosed,
			period.Type,
			period.PeriodID,
			period.StartDate.UTC().Format("2006-01-02"),
			period.EndDate.UTC().Format("2006-01-02"),
			action,
		)
	}
	return nil
}

func (s Service) addAudit(
	ctx context.Context,
	r ports.Repository,
	actorID string,
	action string,
	entityID string,
	before *ports.LedgerTransaction,
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
		EntityType: entityTypeTransaction,
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

func (s Service) rollbackAttachment(ctx context.Context, path string) {
	if path == "" || s.Storage == nil {
		return
	}
	if err := s.Storage.Delete(ctx, path, storage.DeleteOptions{Rollback: true}); err != nil {
		s.log().Warn("attachment rollback failed",
			"event", "ledger_attachment_rollback_failed",
			"module", "finance-core/ledger-service",
			"layer", "application",
			"path", path,
			"error", err.Error(),
		)
	}
}

func (s Service) afterCommit(ctx context.Context, actorID string, eventType string, transaction ports.LedgerTransaction) {
	if s.Publisher != nil {
		data, _ := json.Marshal(map[string]any{
			"transaction_id": transaction.TransactionID,
			"org_id":         transaction.OrgID,
			"type":           string(transaction.Type),
			"amount":         transaction.Amount.StringFixed(2),
			"currency":       transaction.Currency,
			"effective_date": transaction.EffectiveDate.UTC().Format("2006-01-02"),
		})
		envelope := events.Envelope{
			EventID:       uuid.NewString(),
			EventType:     eventType,
			SourceService: "ledger-service",
			OccurredAtUTC: s.now(),
			ActorID:       actorID,
			EntityType:    entityTypeTransaction,
			EntityID:      transaction.TransactionID,
			Data:          data,
		}
		if err := s.Publisher.Publish(ctx, s.Topic, envelope); err != nil {
			s.log().Warn("notification publish failed",
				"event", "ledger_notification_failed",
				"module", "finance-core/ledger-service",
				"layer", "application",
				"event_type", eventType,
				"error", err.Error(),
			)
		}
	}
	s.CheckBalanceIntegrity(ctx, transaction.OrgID)
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

func isValidCreateInput(input ports.CreateTransactionInput) bool {
	return strings.TrimSpace(input.OrgID) != "" &&
		isValidType(input.Type) &&
		input.Amount.IsPositive() &&
		strings.TrimSpace(input.Currency) != "" &&
		!input.EffectiveDate.IsZero()
}

func isValidUpdateInput(input ports.UpdateTransactionInput) bool {
	return isValidType(input.Type) &&
		input.Amount.IsPositive() &&
		strings.TrimSpace(input.Currency) != "" &&
		!input.EffectiveDate.IsZero()
}

func isValidType(t ports.TransactionType) bool {
	return t == ports.TransactionTypeIncome || t == ports.TransactionTypeExpense
}

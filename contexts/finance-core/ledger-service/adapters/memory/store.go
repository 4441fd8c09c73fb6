package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	"caritas/contexts/finance-core/ledger-service/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the in-memory adapter backing unit tests. InActorTx snapshots the
// mutable state and restores it when fn fails, so rollback semantics match
// the database transaction.
type Store struct {
	mu sync.Mutex

	transactions map[string]ports.LedgerTransaction
	audits       []ports.AuditEntry

	members map[string]ports.Role
	periods []periodFixture
}

type periodFixture struct {
	ports.ClosedPeriod
	OrgID string
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]ports.LedgerTransaction),
		members:      make(map[string]ports.Role),
	}
}

// SeedMember registers an org membership fixture.
func (s *Store) SeedMember(orgID string, userID string, role ports.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(orgID, userID)] = role
}

// SeedClosedPeriod registers a closed accounting period fixture.
func (s *Store) SeedClosedPeriod(orgID string, period ports.ClosedPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, periodFixture{ClosedPeriod: period, OrgID: strings.TrimSpace(orgID)})
}

// SeedTransaction inserts a transaction without guards or audit.
func (s *Store) SeedTransaction(transaction ports.LedgerTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[transaction.TransactionID] = transaction
}

func (s *Store) InActorTx(_ context.Context, fn func(ports.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupTransactions := make(map[string]ports.LedgerTransaction, len(s.transactions))
	for key, value := range s.transactions {
		backupTransactions[key] = value
	}
	backupAudits := append([]ports.AuditEntry(nil), s.audits...)

	if err := fn(txView{s}); err != nil {
		s.transactions = backupTransactions
		s.audits = backupAudits
		return err
	}
	return nil
}

// txView exposes the store inside an open transaction without re-locking.
type txView struct {
	s *Store
}

func (v txView) InActorTx(ctx context.Context, fn func(ports.Repository) error) error {
	return fn(v)
}

func (v txView) GetTransaction(_ context.Context, transactionID string) (ports.LedgerTransaction, error) {
	return v.s.getTransactionLocked(transactionID)
}

func (v txView) ListTransactions(_ context.Context, filter ports.TransactionFilter) ([]ports.LedgerTransaction, error) {
	return v.s.listTransactionsLocked(filter), nil
}

func (v txView) CreateTransaction(_ context.Context, transaction ports.LedgerTransaction) error {
	v.s.transactions[transaction.TransactionID] = transaction
	return nil
}

func (v txView) UpdateTransaction(_ context.Context, transaction ports.LedgerTransaction) error {
	if _, ok := v.s.transactions[transaction.TransactionID]; !ok {
		return domainerrors.ErrNotFound
	}
	v.s.transactions[transaction.TransactionID] = transaction
	return nil
}

func (v txView) DeleteTransaction(_ context.Context, transactionID string) error {
	if _, ok := v.s.transactions[transactionID]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(v.s.transactions, transactionID)
	return nil
}

func (v txView) GetMemberRole(_ context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	role, ok := v.s.members[memberKey(orgID, actorID)]
	return role, ok, nil
}

func (v txView) FindClosedPeriodCovering(_ context.Context, orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	return v.s.findClosedPeriodLocked(orgID, date)
}

func (v txView) AddAudit(_ context.Context, entry ports.AuditEntry) error {
	v.s.audits = append(v.s.audits, entry)
	return nil
}

func (v txView) ListAudits(_ context.Context, entityID string) ([]ports.AuditEntry, error) {
	return v.s.listAuditsLocked(entityID), nil
}

func (v txView) SumByType(_ context.Context, orgID string) (decimal.Decimal, decimal.Decimal, error) {
	return v.s.sumByTypeLocked(orgID)
}

func (s *Store) GetTransaction(_ context.Context, transactionID string) (ports.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTransactionLocked(transactionID)
}

func (s *Store) ListTransactions(_ context.Context, filter ports.TransactionFilter) ([]ports.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTransactionsLocked(filter), nil
}

func (s *Store) CreateTransaction(_ context.Context, transaction ports.LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[transaction.TransactionID] = transaction
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, transaction ports.LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[transaction.TransactionID]; !ok {
		return domainerrors.ErrNotFound
	}
	s.transactions[transaction.TransactionID] = transaction
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[transactionID]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(s.transactions, transactionID)
	return nil
}

func (s *Store) GetMemberRole(_ context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.members[memberKey(orgID, actorID)]
	return role, ok, nil
}

func (s *Store) FindClosedPeriodCovering(_ context.Context, orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findClosedPeriodLocked(orgID, date)
}

func (s *Store) AddAudit(_ context.Context, entry ports.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, entry)
	return nil
}

func (s *Store) ListAudits(_ context.Context, entityID string) ([]ports.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAuditsLocked(entityID), nil
}

func (s *Store) SumByType(_ context.Context, orgID string) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumByTypeLocked(orgID)
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) getTransactionLocked(transactionID string) (ports.LedgerTransaction, error) {
	item, ok := s.transactions[strings.TrimSpace(transactionID)]
	if !ok {
		return ports.LedgerTransaction{}, domainerrors.ErrNotFound
	}
	return item, nil
}

func (s *Store) listTransactionsLocked(filter ports.TransactionFilter) []ports.LedgerTransaction {
	items := make([]ports.LedgerTransaction, 0)
	for _, item := range s.transactions {
		if item.OrgID != strings.TrimSpace(filter.OrgID) {
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && item.EffectiveDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && item.EffectiveDate.After(filter.To) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].EffectiveDate.After(items[j].EffectiveDate)
	})
	return items
}

func (s *Store) findClosedPeriodLocked(orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	for _, period := range s.periods {
		if period.OrgID != strings.TrimSpace(orgID) {
			continue
		}
		if !date.Before(period.StartDate) && !date.After(period.EndDate) {
			return period.ClosedPeriod, true, nil
		}
	}
	return ports.ClosedPeriod{}, false, nil
}

func (s *Store) listAuditsLocked(entityID string) []ports.AuditEntry {
	items := make([]ports.AuditEntry, 0)
	for _, entry := range s.audits {
		if entry.EntityID == strings.TrimSpace(entityID) {
			items = append(items, entry)
		}
	}
	return items
}

func (s *Store) sumByTypeLocked(orgID string) (decimal.Decimal, decimal.Decimal, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, item := range s.transactions {
		if item.OrgID != strings.TrimSpace(orgID) {
			continue
		}
		switch item.Type {
		case ports.TransactionTypeIncome:
			income = income.Add(item.Amount)
		case ports.TransactionTypeExpense:
			expense = expense.Add(item.Amount)
		}
	}
	return income, expense, nil
}

func memberKey(orgID string, userID string) string {
	return strings.TrimSpace(orgID) + "/" + strings.TrimSpace(userID)
}

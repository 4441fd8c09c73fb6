package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	"caritas/contexts/finance-core/accounting-period-service/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ledgerFixture struct {
	OrgID         string
	Type          string
	Amount        decimal.Decimal
	EffectiveDate time.Time
}

// Store is the in-memory adapter backing unit tests, with snapshot rollback
// inside InActorTx.
type Store struct {
	mu sync.Mutex

	periods map[string]ports.AccountingPeriod
	audits  []ports.AuditEntry

	members map[string]ports.Role
	ledger  []ledgerFixture
}

func NewStore() *Store {
	return &Store{
		periods: make(map[string]ports.AccountingPeriod),
		members: make(map[string]ports.Role),
	}
}

func (s *Store) SeedMember(orgID string, userID string, role ports.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(orgID, userID)] = role
}

// SeedLedgerEntry registers a ledger row fixture for snapshot sums.
func (s *Store) SeedLedgerEntry(orgID string, txType string, amount decimal.Decimal, effectiveDate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, ledgerFixture{
		OrgID:         strings.TrimSpace(orgID),
		Type:          txType,
		Amount:        amount,
		EffectiveDate: effectiveDate.UTC(),
	})
}

func (s *Store) InActorTx(_ context.Context, fn func(ports.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupPeriods := make(map[string]ports.AccountingPeriod, len(s.periods))
	for key, value := range s.periods {
		backupPeriods[key] = value
	}
	backupAudits := append([]ports.AuditEntry(nil), s.audits...)

	if err := fn(txView{s}); err != nil {
		s.periods = backupPeriods
		s.audits = backupAudits
		return err
	}
	return nil
}

type txView struct {
	s *Store
}

func (v txView) InActorTx(ctx context.Context, fn func(ports.Repository) error) error {
	return fn(v)
}

func (v txView) GetPeriod(_ context.Context, periodID string) (ports.AccountingPeriod, error) {
	return v.s.getPeriodLocked(periodID)
}

func (v txView) ListPeriods(_ context.Context, orgID string) ([]ports.AccountingPeriod, error) {
	return v.s.listPeriodsLocked(orgID), nil
}

func (v txView) CreatePeriod(_ context.Context, period ports.AccountingPeriod) error {
	v.s.periods[period.PeriodID] = period
	return nil
}

func (v txView) UpdatePeriod(_ context.Context, period ports.AccountingPeriod) error {
	if _, ok := v.s.periods[period.PeriodID]; !ok {
		return domainerrors.ErrNotFound
	}
	v.s.periods[period.PeriodID] = period
	return nil
}

func (v txView) FindOverlapping(_ context.Context, orgID string, start time.Time, end time.Time) (ports.AccountingPeriod, bool, error) {
	return v.s.findOverlappingLocked(orgID, start, end)
}

func (v txView) GetMemberRole(_ context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	role, ok := v.s.members[memberKey(orgID, actorID)]
	return role, ok, nil
}

func (v txView) SumLedgerRange(_ context.Context, orgID string, start time.Time, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return v.s.sumLedgerRangeLocked(orgID, start, end)
}

func (v txView) AddAudit(_ context.Context, entry ports.AuditEntry) error {
	v.s.audits = append(v.s.audits, entry)
	return nil
}

func (v txView) ListAudits(_ context.Context, entityID string) ([]ports.AuditEntry, error) {
	return v.s.listAuditsLocked(entityID), nil
}

func (s *Store) GetPeriod(_ context.Context, periodID string) (ports.AccountingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPeriodLocked(periodID)
}

func (s *Store) ListPeriods(_ context.Context, orgID string) ([]ports.AccountingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPeriodsLocked(orgID), nil
}

func (s *Store) CreatePeriod(_ context.Context, period ports.AccountingPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[period.PeriodID] = period
	return nil
}

func (s *Store) UpdatePeriod(_ context.Context, period ports.AccountingPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[period.PeriodID]; !ok {
		return domainerrors.ErrNotFound
	}
	s.periods[period.PeriodID] = period
	return nil
}

func (s *Store) FindOverlapping(_ context.Context, orgID string, start time.Time, end time.Time) (ports.AccountingPeriod, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOverlappingLocked(orgID, start, end)
}

func (s *Store) GetMemberRole(_ context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.members[memberKey(orgID, actorID)]
	return role, ok, nil
}

func (s *Store) SumLedgerRange(_ context.Context, orgID string, start time.Time, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLedgerRangeLocked(orgID, start, end)
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

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) getPeriodLocked(periodID string) (ports.AccountingPeriod, error) {
	item, ok := s.periods[strings.TrimSpace(periodID)]
	if !ok {
		return ports.AccountingPeriod{}, domainerrors.ErrNotFound
	}
	return item, nil
}

func (s *Store) listPeriodsLocked(orgID string) []ports.AccountingPeriod {
	items := make([]ports.AccountingPeriod, 0)
	for _, item := range s.periods {
		if item.OrgID == strings.TrimSpace(orgID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartDate.Before(items[j].StartDate)
	})
	return items
}

func (s *Store) findOverlappingLocked(orgID string, start time.Time, end time.Time) (ports.AccountingPeriod, bool, error) {
	for _, item := range s.periods {
		if item.OrgID != strings.TrimSpace(orgID) {
			continue
		}
		if !item.StartDate.After(end) && !item.EndDate.Before(start) {
			return item, true, nil
		}
	}
	return ports.AccountingPeriod{}, false, nil
}

func (s *Store) sumLedgerRangeLocked(orgID string, start time.Time, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, entry := range s.ledger {
		if entry.OrgID != strings.TrimSpace(orgID) {
			continue
		}
		if entry.EffectiveDate.Before(start) || entry.EffectiveDate.After(end) {
			continue
		}
		switch entry.Type {
		case "income":
			income = income.Add(entry.Amount)
		case "expense":
			expense = expense.Add(entry.Amount)
		}
	}
	return income, expense, nil
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

func memberKey(orgID string, userID string) string {
	return strings.TrimSpace(orgID) + "/" + strings.TrimSpace(userID)
}

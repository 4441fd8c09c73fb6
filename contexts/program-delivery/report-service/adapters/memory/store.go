package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "caritas/contexts/program-delivery/report-service/domain/errors"
	"caritas/contexts/program-delivery/report-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing unit tests, with snapshot rollback
// inside InActorTx. Members and closed periods are fixtures and never roll
// back.
type Store struct {
	mu sync.Mutex

	reports map[string]ports.ActivityReport
	spawned []ports.SpawnedTransaction
	audits  []ports.AuditEntry

	members map[string]ports.Role

	// periodOrgs parallels periods; ClosedPeriod carries no org of its own.
	periods    []ports.ClosedPeriod
	periodOrgs []string
}

func NewStore() *Store {
	return &Store{
		reports: make(map[string]ports.ActivityReport),
		members: make(map[string]ports.Role),
	}
}

func (s *Store) SeedMember(orgID string, userID string, role ports.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(orgID, userID)] = role
}

func (s *Store) SeedClosedPeriod(orgID string, period ports.ClosedPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, ports.ClosedPeriod{
		PeriodID:  period.PeriodID,
		Type:      period.Type,
		StartDate: period.StartDate.UTC(),
		EndDate:   period.EndDate.UTC(),
	})
	s.periodOrgs = append(s.periodOrgs, strings.TrimSpace(orgID))
}

func (s *Store) SeedReport(report ports.ActivityReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ReportID] = report
}

// SpawnedTransactions returns the ledger rows booked by report approvals.
func (s *Store) SpawnedTransactions() []ports.SpawnedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SpawnedTransaction(nil), s.spawned...)
}

func (s *Store) InActorTx(_ context.Context, fn func(ports.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupReports := make(map[string]ports.ActivityReport, len(s.reports))
	for key, value := range s.reports {
		backupReports[key] = value
	}
	backupSpawned := append([]ports.SpawnedTransaction(nil), s.spawned...)
	backupAudits := append([]ports.AuditEntry(nil), s.audits...)

	if err := fn(txView{s}); err != nil {
		s.reports = backupReports
		s.spawned = backupSpawned
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

func (v txView) GetReport(_ context.Context, reportID string) (ports.ActivityReport, error) {
	return v.s.getReportLocked(reportID)
}

func (v txView) ListReports(_ context.Context, orgID string) ([]ports.ActivityReport, error) {
	return v.s.listReportsLocked(orgID), nil
}

func (v txView) CreateReport(_ context.Context, report ports.ActivityReport) error {
	return v.s.createReportLocked(report)
}

func (v txView) UpdateReport(_ context.Context, report ports.ActivityReport) error {
	return v.s.updateReportLocked(report)
}

func (v txView) FindReportByActivity(_ context.Context, orgID string, activityID string) (ports.ActivityReport, bool, error) {
	return v.s.findReportByActivityLocked(orgID, activityID)
}

func (v txView) GetMemberRole(_ context.Context, orgID string, actorID string) (ports.Role, bool, error) {
	role, ok := v.s.members[memberKey(orgID, actorID)]
	return role, ok, nil
}

func (v txView) FindClosedPeriodCovering(_ context.Context, orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	return v.s.findClosedPeriodLocked(orgID, date)
}

func (v txView) SpawnLedgerTransaction(_ context.Context, transaction ports.SpawnedTransaction) error {
	v.s.spawned = append(v.s.spawned, transaction)
	return nil
}

func (v txView) AddAudit(_ context.Context, entry ports.AuditEntry) error {
	v.s.audits = append(v.s.audits, entry)
	return nil
}

func (v txView) ListAudits(_ context.Context, entityID string) ([]ports.AuditEntry, error) {
	return v.s.listAuditsLocked(entityID), nil
}

func (s *Store) GetReport(_ context.Context, reportID string) (ports.ActivityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getReportLocked(reportID)
}

func (s *Store) ListReports(_ context.Context, orgID string) ([]ports.ActivityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listReportsLocked(orgID), nil
}

func (s *Store) CreateReport(_ context.Context, report ports.ActivityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createReportLocked(report)
}

func (s *Store) UpdateReport(_ context.Context, report ports.ActivityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateReportLocked(report)
}

func (s *Store) FindReportByActivity(_ context.Context, orgID string, activityID string) (ports.ActivityReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findReportByActivityLocked(orgID, activityID)
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

func (s *Store) SpawnLedgerTransaction(_ context.Context, transaction ports.SpawnedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawned = append(s.spawned, transaction)
	return nil
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

func (s *Store) getReportLocked(reportID string) (ports.ActivityReport, error) {
	item, ok := s.reports[strings.TrimSpace(reportID)]
	if !ok {
		return ports.ActivityReport{}, domainerrors.ErrNotFound
	}
	return item, nil
}

func (s *Store) listReportsLocked(orgID string) []ports.ActivityReport {
	items := make([]ports.ActivityReport, 0)
	for _, item := range s.reports {
		if item.OrgID == strings.TrimSpace(orgID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (s *Store) createReportLocked(report ports.ActivityReport) error {
	if _, found, _ := s.findReportByActivityLocked(report.OrgID, report.ActivityID); found {
		return domainerrors.ErrDuplicateReport
	}
	s.reports[report.ReportID] = report
	return nil
}

func (s *Store) updateReportLocked(report ports.ActivityReport) error {
	if _, ok := s.reports[report.ReportID]; !ok {
		return domainerrors.ErrNotFound
	}
	s.reports[report.ReportID] = report
	return nil
}

func (s *Store) findReportByActivityLocked(orgID string, activityID string) (ports.ActivityReport, bool, error) {
	for _, item := range s.reports {
		if item.OrgID == strings.TrimSpace(orgID) && item.ActivityID == strings.TrimSpace(activityID) {
			return item, true, nil
		}
	}
	return ports.ActivityReport{}, false, nil
}

func (s *Store) findClosedPeriodLocked(orgID string, date time.Time) (ports.ClosedPeriod, bool, error) {
	trimmed := strings.TrimSpace(orgID)
	for i, period := range s.periods {
		if s.periodOrgs[i] != trimmed {
			continue
		}
		if !date.Before(period.StartDate) && !date.After(period.EndDate) {
			return period, true, nil
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

func memberKey(orgID string, userID string) string {
	return strings.TrimSpace(orgID) + "/" + strings.TrimSpace(userID)
}

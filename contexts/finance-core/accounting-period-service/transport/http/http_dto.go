package httptransport

import "encoding/json"

type CreatePeriodRequest struct {
	OrgID     string `json:"org_id"`
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type PeriodDTO struct {
	PeriodID   string          `json:"period_id"`
	OrgID      string          `json:"org_id"`
	Type       string          `json:"type"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	Status     string          `json:"status"`
	ClosedAt   string          `json:"closed_at,omitempty"`
	ClosedByID string          `json:"closed_by_id,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type PeriodResponse struct {
	Status string    `json:"status"`
	Data   PeriodDTO `json:"data"`
}

type PeriodListResponse struct {
	Status string      `json:"status"`
	Data   []PeriodDTO `json:"data"`
}

type AuditEntryDTO struct {
	AuditID    string `json:"audit_id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"created_at"`
}

type AuditListResponse struct {
	Status string          `json:"status"`
	Data   []AuditEntryDTO `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

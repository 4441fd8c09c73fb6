package httptransport

type CreateReportRequest struct {
	OrgID        string `json:"org_id"`
	ActivityID   string `json:"activity_id"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	TotalExpense string `json:"total_expense"`
	Currency     string `json:"currency"`
}

type UpdateReportRequest struct {
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	TotalExpense string `json:"total_expense"`
	Currency     string `json:"currency"`
}

type RejectReportRequest struct {
	Reason string `json:"reason"`
}

type ReportDTO struct {
	ReportID     string `json:"report_id"`
	OrgID        string `json:"org_id"`
	ActivityID   string `json:"activity_id"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	TotalExpense string `json:"total_expense"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	CreatedByID  string `json:"created_by_id"`
	ApprovedByID string `json:"approved_by_id,omitempty"`
	ApprovedAt   string `json:"approved_at,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ReportResponse struct {
	Status string    `json:"status"`
	Data   ReportDTO `json:"data"`
}

type ReportListResponse struct {
	Status string      `json:"status"`
	Data   []ReportDTO `json:"data"`
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

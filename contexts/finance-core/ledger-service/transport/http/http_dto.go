package httptransport

type CreateTransactionRequest struct {
	OrgID          string `json:"org_id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	CategoryID     string `json:"category_id"`
	EffectiveDate  string `json:"effective_date"`
	AttachmentPath string `json:"attachment_path"`
}

type UpdateTransactionRequest struct {
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	CategoryID     string `json:"category_id"`
	EffectiveDate  string `json:"effective_date"`
	AttachmentPath string `json:"attachment_path"`
}

type TransactionDTO struct {
	TransactionID   string `json:"transaction_id"`
	OrgID           string `json:"org_id"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	CategoryID      string `json:"category_id"`
	EffectiveDate   string `json:"effective_date"`
	AttachmentPath  string `json:"attachment_path"`
	SystemGenerated bool   `json:"system_generated"`
	SourceReportID  string `json:"source_report_id,omitempty"`
	CreatedByID     string `json:"created_by_id"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type TransactionResponse struct {
	Status string         `json:"status"`
	Data   TransactionDTO `json:"data"`
}

type TransactionListResponse struct {
	Status string           `json:"status"`
	Data   []TransactionDTO `json:"data"`
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

type DeleteResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

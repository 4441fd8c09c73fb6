package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"caritas/contexts/finance-core/ledger-service/application"
	domainerrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	"caritas/contexts/finance-core/ledger-service/ports"
	httptransport "caritas/contexts/finance-core/ledger-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateTransactionHandler(ctx context.Context, req httptransport.CreateTransactionRequest) (httptransport.TransactionResponse, error) {
	input, err := createInputFromRequest(req)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	transaction, err := h.Service.CreateTransaction(ctx, input)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return httptransport.TransactionResponse{Status: "success", Data: toDTO(transaction)}, nil
}

func (h Handler) UpdateTransactionHandler(ctx context.Context, transactionID string, req httptransport.UpdateTransactionRequest) (httptransport.TransactionResponse, error) {
	input, err := updateInputFromRequest(req)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	transaction, err := h.Service.UpdateTransaction(ctx, transactionID, input)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return httptransport.TransactionResponse{Status: "success", Data: toDTO(transaction)}, nil
}

func (h Handler) DeleteTransactionHandler(ctx context.Context, transactionID string) (httptransport.DeleteResponse, error) {
	if err := h.Service.DeleteTransaction(ctx, transactionID); err != nil {
		return httptransport.DeleteResponse{}, err
	}
	return httptransport.DeleteResponse{Status: "success"}, nil
}

func (h Handler) GetTransactionHandler(ctx context.Context, transactionID string) (httptransport.TransactionResponse, error) {
	transaction, err := h.Service.GetTransaction(ctx, transactionID)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return httptransport.TransactionResponse{Status: "success", Data: toDTO(transaction)}, nil
}

func (h Handler) ListTransactionsHandler(ctx context.Context, orgID string, txType string, from string, to string) (httptransport.TransactionListResponse, error) {
	filter := ports.TransactionFilter{
		OrgID: orgID,
		Type:  ports.TransactionType(txType),
	}
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return httptransport.TransactionListResponse{}, domainerrors.ErrInvalidInput
		}
		filter.From = parsed.UTC()
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return httptransport.TransactionListResponse{}, domainerrors.ErrInvalidInput
		}
		filter.To = parsed.UTC()
	}

	items, err := h.Service.ListTransactions(ctx, filter)
	if err != nil {
		return httptransport.TransactionListResponse{}, err
	}
	resp := httptransport.TransactionListResponse{
		Status: "success",
		Data:   make([]httptransport.TransactionDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func (h Handler) ListAuditsHandler(ctx context.Context, entityID string) (httptransport.AuditListResponse, error) {
	items, err := h.Service.ListAudits(ctx, entityID)
	if err != nil {
		return httptransport.AuditListResponse{}, err
	}
	resp := httptransport.AuditListResponse{
		Status: "success",
		Data:   make([]httptransport.AuditEntryDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, httptransport.AuditEntryDTO{
			AuditID:    item.AuditID,
			ActorID:    item.ActorID,
			Action:     item.Action,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			Comment:    item.Comment,
			CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func createInputFromRequest(req httptransport.CreateTransactionRequest) (ports.CreateTransactionInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ports.CreateTransactionInput{}, domainerrors.ErrInvalidInput
	}
	effectiveDate, err := time.Parse("2006-01-02", req.EffectiveDate)
	if err != nil {
		return ports.CreateTransactionInput{}, domainerrors.ErrInvalidInput
	}
	return ports.CreateTransactionInput{
		OrgID:          req.OrgID,
		Type:           ports.TransactionType(req.Type),
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		EffectiveDate:  effectiveDate.UTC(),
		AttachmentPath: req.AttachmentPath,
	}, nil
}

func updateInputFromRequest(req httptransport.UpdateTransactionRequest) (ports.UpdateTransactionInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ports.UpdateTransactionInput{}, domainerrors.ErrInvalidInput
	}
	effectiveDate, err := time.Parse("2006-01-02", req.EffectiveDate)
	if err != nil {
		return ports.UpdateTransactionInput{}, domainerrors.ErrInvalidInput
	}
	return ports.UpdateTransactionInput{
		Type:           ports.TransactionType(req.Type),
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		EffectiveDate:  effectiveDate.UTC(),
		AttachmentPath: req.AttachmentPath,
	}, nil
}

func toDTO(item ports.LedgerTransaction) httptransport.TransactionDTO {
	return httptransport.TransactionDTO{
		TransactionID:   item.TransactionID,
		OrgID:           item.OrgID,
		Type:            string(item.Type),
		Amount:          item.Amount.StringFixed(2),
		Currency:        item.Currency,
		Description:     item.Description,
		CategoryID:      item.CategoryID,
		EffectiveDate:   item.EffectiveDate.UTC().Format("2006-01-02"),
		AttachmentPath:  item.AttachmentPath,
		SystemGenerated: item.SystemGenerated,
		SourceReportID:  item.SourceReportID,
		CreatedByID:     item.CreatedByID,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

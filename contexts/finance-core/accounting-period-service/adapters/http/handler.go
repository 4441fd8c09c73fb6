package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"caritas/contexts/finance-core/accounting-period-service/application"
	domainerrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	"caritas/contexts/finance-core/accounting-period-service/ports"
	httptransport "caritas/contexts/finance-core/accounting-period-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreatePeriodHandler(ctx context.Context, req httptransport.CreatePeriodRequest) (httptransport.PeriodResponse, error) {
	input, err := createInputFromRequest(req)
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	period, err := h.Service.CreatePeriod(ctx, input)
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	return httptransport.PeriodResponse{Status: "success", Data: toDTO(period)}, nil
}

func (h Handler) ClosePeriodHandler(ctx context.Context, periodID string) (httptransport.PeriodResponse, error) {
	period, err := h.Service.ClosePeriod(ctx, periodID)
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	return httptransport.PeriodResponse{Status: "success", Data: toDTO(period)}, nil
}

func (h Handler) ReopenPeriodHandler(ctx context.Context, periodID string) (httptransport.PeriodResponse, error) {
	period, err := h.Service.ReopenPeriod(ctx, periodID)
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	return httptransport.PeriodResponse{Status: "success", Data: toDTO(period)}, nil
}

func (h Handler) GetPeriodHandler(ctx context.Context, periodID string) (httptransport.PeriodResponse, error) {
	period, err := h.Service.GetPeriod(ctx, periodID)
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	return httptransport.PeriodResponse{Status: "success", Data: toDTO(period)}, nil
}

func (h Handler) ListPeriodsHandler(ctx context.Context, orgID string) (httptransport.PeriodListResponse, error) {
	items, err := h.Service.ListPeriods(ctx, orgID)
	if err != nil {
		return httptransport.PeriodListResponse{}, err
	}
	resp := httptransport.PeriodListResponse{
		Status: "success",
		Data:   make([]httptransport.PeriodDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func (h Handler) ListAuditsHandler(ctx context.Context, periodID string) (httptransport.AuditListResponse, error) {
	items, err := h.Service.ListAudits(ctx, periodID)
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

func createInputFromRequest(req httptransport.CreatePeriodRequest) (ports.CreatePeriodInput, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return ports.CreatePeriodInput{}, domainerrors.ErrInvalidInput
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return ports.CreatePeriodInput{}, domainerrors.ErrInvalidInput
	}
	return ports.CreatePeriodInput{
		OrgID:     req.OrgID,
		Type:      ports.PeriodType(req.Type),
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
	}, nil
}

func toDTO(item ports.AccountingPeriod) httptransport.PeriodDTO {
	dto := httptransport.PeriodDTO{
		PeriodID:   item.PeriodID,
		OrgID:      item.OrgID,
		Type:       string(item.Type),
		StartDate:  item.StartDate.UTC().Format("2006-01-02"),
		EndDate:    item.EndDate.UTC().Format("2006-01-02"),
		Status:     string(item.Status),
		ClosedByID: item.ClosedByID,
		Snapshot:   item.Snapshot,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.ClosedAt != nil {
		dto.ClosedAt = item.ClosedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

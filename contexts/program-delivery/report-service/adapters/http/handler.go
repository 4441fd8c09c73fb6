package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"caritas/contexts/program-delivery/report-service/application"
	domainerrors "caritas/contexts/program-delivery/report-service/domain/errors"
	"caritas/contexts/program-delivery/report-service/ports"
	httptransport "caritas/contexts/program-delivery/report-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) CreateReportHandler(ctx context.Context, req httptransport.CreateReportRequest) (httptransport.ReportResponse, error) {
	total, err := decimal.NewFromString(req.TotalExpense)
	if err != nil {
		return httptransport.ReportResponse{}, domainerrors.ErrInvalidInput
	}
	report, err := h.Service.CreateReport(ctx, ports.CreateReportInput{
		OrgID:        req.OrgID,
		ActivityID:   req.ActivityID,
		Title:        req.Title,
		Summary:      req.Summary,
		TotalExpense: total,
		Currency:     req.Currency,
	})
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) UpdateReportHandler(ctx context.Context, reportID string, req httptransport.UpdateReportRequest) (httptransport.ReportResponse, error) {
	total, err := decimal.NewFromString(req.TotalExpense)
	if err != nil {
		return httptransport.ReportResponse{}, domainerrors.ErrInvalidInput
	}
	report, err := h.Service.UpdateReport(ctx, reportID, ports.UpdateReportInput{
		Title:        req.Title,
		Summary:      req.Summary,
		TotalExpense: total,
		Currency:     req.Currency,
	})
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) SubmitReportHandler(ctx context.Context, reportID string) (httptransport.ReportResponse, error) {
	report, err := h.Service.SubmitReport(ctx, reportID)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) ApproveReportHandler(ctx context.Context, reportID string) (httptransport.ReportResponse, error) {
	report, err := h.Service.ApproveReport(ctx, reportID)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) RejectReportHandler(ctx context.Context, reportID string, req httptransport.RejectReportRequest) (httptransport.ReportResponse, error) {
	report, err := h.Service.RejectReport(ctx, reportID, req.Reason)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) GetReportHandler(ctx context.Context, reportID string) (httptransport.ReportResponse, error) {
	report, err := h.Service.GetReport(ctx, reportID)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return httptransport.ReportResponse{Status: "success", Data: toDTO(report)}, nil
}

func (h Handler) ListReportsHandler(ctx context.Context, orgID string) (httptransport.ReportListResponse, error) {
	items, err := h.Service.ListReports(ctx, orgID)
	if err != nil {
		return httptransport.ReportListResponse{}, err
	}
	resp := httptransport.ReportListResponse{
		Status: "success",
		Data:   make([]httptransport.ReportDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func (h Handler) ListAuditsHandler(ctx context.Context, reportID string) (httptransport.AuditListResponse, error) {
	items, err := h.Service.ListAudits(ctx, reportID)
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

func toDTO(item ports.ActivityReport) httptransport.ReportDTO {
	dto := httptransport.ReportDTO{
		ReportID:     item.ReportID,
		OrgID:        item.OrgID,
		ActivityID:   item.ActivityID,
		Title:        item.Title,
		Summary:      item.Summary,
		TotalExpense: item.TotalExpense.StringFixed(2),
		Currency:     item.Currency,
		Status:       string(item.Status),
		CreatedByID:  item.CreatedByID,
		ApprovedByID: item.ApprovedByID,
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.ApprovedAt != nil {
		dto.ApprovedAt = item.ApprovedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

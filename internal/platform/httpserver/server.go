package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	accountingperiodservice "caritas/contexts/finance-core/accounting-period-service"
	perioderrors "caritas/contexts/finance-core/accounting-period-service/domain/errors"
	periodhttp "caritas/contexts/finance-core/accounting-period-service/transport/http"
	ledgerservice "caritas/contexts/finance-core/ledger-service"
	ledgererrors "caritas/contexts/finance-core/ledger-service/domain/errors"
	ledgerhttp "caritas/contexts/finance-core/ledger-service/transport/http"
	reportservice "caritas/contexts/program-delivery/report-service"
	reporterrors "caritas/contexts/program-delivery/report-service/domain/errors"
	reporthttp "caritas/contexts/program-delivery/report-service/transport/http"
	"caritas/internal/platform/idempotency"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "caritas/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	ledger  ledgerservice.Module
	periods accountingperiodservice.Module
	reports reportservice.Module
	auth    Authenticator
	idem    idempotency.Manager
}

func New(
	ledger ledgerservice.Module,
	periods accountingperiodservice.Module,
	reports reportservice.Module,
	auth Authenticator,
	idem idempotency.Manager,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		ledger:  ledger,
		periods: periods,
		reports: reports,
		auth:    auth,
		idem:    idem,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routing table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.Handle("POST /api/v1/transactions", s.mutation(s.handleCreateTransaction))
	s.mux.Handle("PUT /api/v1/transactions/{transaction_id}", s.mutation(s.handleUpdateTransaction))
	s.mux.Handle("DELETE /api/v1/transactions/{transaction_id}", s.mutation(s.handleDeleteTransaction))
	s.mux.Handle("GET /api/v1/transactions", s.protected(s.handleListTransactions))
	s.mux.Handle("GET /api/v1/transactions/{transaction_id}", s.protected(s.handleGetTransaction))
	s.mux.Handle("GET /api/v1/transactions/{transaction_id}/audits", s.protected(s.handleListTransactionAudits))

	s.mux.Handle("POST /api/v1/periods", s.mutation(s.handleCreatePeriod))
	s.mux.Handle("POST /api/v1/periods/{period_id}/close", s.mutation(s.handleClosePeriod))
	s.mux.Handle("POST /api/v1/periods/{period_id}/reopen", s.mutation(s.handleReopenPeriod))
	s.mux.Handle("GET /api/v1/periods", s.protected(s.handleListPeriods))
	s.mux.Handle("GET /api/v1/periods/{period_id}", s.protected(s.handleGetPeriod))
	s.mux.Handle("GET /api/v1/periods/{period_id}/audits", s.protected(s.handleListPeriodAudits))

	s.mux.Handle("POST /api/v1/reports", s.mutation(s.handleCreateReport))
	s.mux.Handle("PUT /api/v1/reports/{report_id}", s.mutation(s.handleUpdateReport))
	s.mux.Handle("POST /api/v1/reports/{report_id}/submit", s.mutation(s.handleSubmitReport))
	s.mux.Handle("POST /api/v1/reports/{report_id}/approve", s.mutation(s.handleApproveReport))
	s.mux.Handle("POST /api/v1/reports/{report_id}/reject", s.mutation(s.handleRejectReport))
	s.mux.Handle("GET /api/v1/reports", s.protected(s.handleListReports))
	s.mux.Handle("GET /api/v1/reports/{report_id}", s.protected(s.handleGetReport))
	s.mux.Handle("GET /api/v1/reports/{report_id}/audits", s.protected(s.handleListReportAudits))
}

// protected requires a verified actor.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.auth.Middleware(h)
}

// mutation additionally runs the handler under the idempotency key protocol.
func (s *Server) mutation(h http.HandlerFunc) http.Handler {
	return s.auth.Middleware(s.idem.Middleware(h))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req ledgerhttp.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", "VALIDATION_ERROR")
		return
	}
	resp, err := s.ledger.Handler.CreateTransactionHandler(r.Context(), req)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req ledgerhttp.UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", "VALIDATION_ERROR")
		return
	}
	resp, err := s.ledger.Handler.UpdateTransactionHandler(r.Context(), r.PathValue("transaction_id"), req)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.DeleteTransactionHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.GetTransactionHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.ledger.Handler.ListTransactionsHandler(
		r.Context(),
		query.Get("org_id"),
		query.Get("type"),
		query.Get("from"),
		query.Get("to"),
	)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransactionAudits(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.ListAuditsHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodhttp.CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", "VALIDATION_ERROR")
		return
	}
	resp, err := s.periods.Handler.CreatePeriodHandler(r.Context(), req)
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	resp, err := s.periods.Handler.ClosePeriodHandler(r.Context(), r.PathValue("period_id"))
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	resp, err := s.periods.Handler.ReopenPeriodHandler(r.Context(), r.PathValue("period_id"))
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	resp, err := s.periods.Handler.ListPeriodsHandler(r.Context(), r.URL.Query().Get("org_id"))
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	resp, err := s.periods.Handler.GetPeriodHandler(r.Context(), r.PathValue("period_id"))
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPeriodAudits(w http.ResponseWriter, r *http.Request) {
	resp, err := s.periods.Handler.ListAuditsHandler(r.Context(), r.PathValue("period_id"))
	if err != nil {
		s.writePeriodError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req reporthttp.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", "VALIDATION_ERROR")
		return
	}
	resp, err := s.reports.Handler.CreateReportHandler(r.Context(), req)
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req reporthttp.UpdateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", "VALIDATION_ERROR")
		return
	}
	resp, err := s.reports.Handler.UpdateReportHandler(r.Context(), r.PathValue("report_id"), req)
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Handler.SubmitReportHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApproveReport(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Handler.ApproveReportHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRejectReport(w http.ResponseWriter, r *http.Request) {
	var req reporthttp.RejectReportRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	resp, err := s.reports.Handler.RejectReportHandler(r.Context(), r.PathValue("report_id"), req)
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Handler.ListReportsHandler(r.Context(), r.URL.Query().Get("org_id"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Handler.GetReportHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListReportAudits(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reports.Handler.ListAuditsHandler(r.Context(), r.PathValue("report_id"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ledgererrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ledgererrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ledgererrors.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ledgererrors.ErrPeriodClosed):
		writeError(w, http.StatusConflict, err.Error(), "PERIOD_CLOSED")
	case errors.Is(err, ledgererrors.ErrTransactionImmutable):
		writeError(w, http.StatusConflict, err.Error(), "TRANSACTION_IMMUTABLE")
	default:
		s.logInternal("ledger", err)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func (s *Server) writePeriodError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, perioderrors.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, perioderrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, perioderrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, perioderrors.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, perioderrors.ErrOverlap):
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, perioderrors.ErrInvalidStatus):
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
	default:
		s.logInternal("accounting-period", err)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func (s *Server) writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reporterrors.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, reporterrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, reporterrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, reporterrors.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, reporterrors.ErrDuplicateReport):
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, reporterrors.ErrInvalidStatus):
		writeError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, reporterrors.ErrPeriodClosed):
		writeError(w, http.StatusConflict, err.Error(), "PERIOD_CLOSED")
	default:
		s.logInternal("report", err)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func (s *Server) logInternal(service string, err error) {
	s.logger.Error("unclassified handler error",
		"event", "http_internal_error",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"service", service,
		"error", err.Error(),
	)
}

func writeError(w http.ResponseWriter, status int, message string, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

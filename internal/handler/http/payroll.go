package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Processing
	ProcessPayroll(w http.ResponseWriter, r *http.Request)

	// Payroll Records
	GetPayrollRecord(w http.ResponseWriter, r *http.Request)
	ListPayrollRecords(w http.ResponseWriter, r *http.Request)
	UpdatePayrollRecord(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	MarkPaid(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)

	// Aggregation
	GetPeriodStats(w http.ResponseWriter, r *http.Request)
	GetEmployeeHistory(w http.ResponseWriter, r *http.Request)

	// Slip
	DownloadSlip(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== PROCESSING ==========

func (h *payrollHandlerImpl) ProcessPayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.ProcessPayrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.InitiatorID = middleware.UserID(r.Context())

	result, err := h.payrollService.Process(r.Context(), req)
	if err != nil {
		// A run cut short by its deadline still reports which employees were saved.
		if errors.Is(err, context.DeadlineExceeded) && result.PeriodMonth != 0 {
			response.FailWithData(w, http.StatusGatewayTimeout, response.CodeProcessingInterrupted,
				"Payroll processing interrupted before all employees were processed", result)
			return
		}
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll processed", result)
}

// ========== PAYROLL RECORDS ==========

func (h *payrollHandlerImpl) GetPayrollRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayrollRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListPayrollRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := payroll.PayrollFilter{
		SortBy:    query.Get("sort_by"),
		SortOrder: query.Get("sort_order"),
	}

	var errs validator.ValidationErrors
	filter.PeriodMonth = optionalInt(query.Get("period_month"), "period_month", &errs)
	filter.PeriodYear = optionalInt(query.Get("period_year"), "period_year", &errs)
	if page := optionalInt(query.Get("page"), "page", &errs); page != nil {
		filter.Page = *page
	}
	if limit := optionalInt(query.Get("limit"), "limit", &errs); limit != nil {
		filter.Limit = *limit
	}
	if len(errs) > 0 {
		response.HandleError(w, errs)
		return
	}

	if v := query.Get("employee_id"); v != "" {
		filter.EmployeeID = &v
	}
	if v := query.Get("payment_status"); v != "" {
		filter.PaymentStatus = &v
	}
	if v := query.Get("approval_status"); v != "" {
		filter.ApprovalStatus = &v
	}

	result, err := h.payrollService.ListPayrollRecords(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, pageMeta(result))
}

func (h *payrollHandlerImpl) UpdatePayrollRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	var req payroll.UpdatePayrollRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = id

	result, err := h.payrollService.UpdatePayrollRecord(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll record updated", result)
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	var req payroll.MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = id

	result, err := h.payrollService.MarkPaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll record marked as paid", result)
}

func (h *payrollHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	req := payroll.ApprovalRequest{ID: id, ApproverID: middleware.UserID(r.Context())}

	result, err := h.payrollService.Approve(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll record approved", result)
}

func (h *payrollHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	var req payroll.ApprovalRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid request body", nil)
			return
		}
	}
	req.ID = id
	req.ApproverID = middleware.UserID(r.Context())

	result, err := h.payrollService.Reject(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll record rejected", result)
}

// ========== AGGREGATION ==========

func (h *payrollHandlerImpl) GetPeriodStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var errs validator.ValidationErrors
	month := requiredInt(query.Get("period_month"), "period_month", &errs)
	year := requiredInt(query.Get("period_year"), "period_year", &errs)
	if len(errs) > 0 {
		response.HandleError(w, errs)
		return
	}

	result, err := h.payrollService.StatsForPeriod(r.Context(), month, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetEmployeeHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")

	var errs validator.ValidationErrors
	limit := 0
	if l := optionalInt(r.URL.Query().Get("limit"), "limit", &errs); l != nil {
		limit = *l
	}
	if len(errs) > 0 {
		response.HandleError(w, errs)
		return
	}

	result, err := h.payrollService.HistoryForEmployee(r.Context(), employeeID, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, pageMeta(result))
}

// ========== SLIP ==========

// DownloadSlip serves the rendered slip. With ?format=json only the slip
// metadata and archive URL are returned.
func (h *payrollHandlerImpl) DownloadSlip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	slip, err := h.payrollService.RenderSlip(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		response.Success(w, slip)
		return
	}

	w.Header().Set("Content-Type", slip.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", slip.FileName))
	if slip.URL != "" {
		w.Header().Set("Content-Location", slip.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(slip.Content)
}

// ========== HELPERS ==========

func optionalInt(raw, field string, errs *validator.ValidationErrors) *int {
	if raw == "" {
		return nil
	}
	if !validator.IsNumeric(raw) {
		*errs = append(*errs, validator.ValidationError{Field: field, Message: "must be a non-negative integer"})
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, validator.ValidationError{Field: field, Message: "is out of range"})
		return nil
	}
	return &v
}

func requiredInt(raw, field string, errs *validator.ValidationErrors) int {
	if validator.IsEmpty(raw) {
		*errs = append(*errs, validator.ValidationError{Field: field, Message: "is required"})
		return 0
	}
	if v := optionalInt(raw, field, errs); v != nil {
		return *v
	}
	return 0
}

func pageMeta(list payroll.ListPayrollRecordResponse) *response.Meta {
	totalPages := 0
	if list.Limit > 0 {
		totalPages = int((list.TotalCount + int64(list.Limit) - 1) / int64(list.Limit))
	}
	return &response.Meta{
		Page:       list.Page,
		Limit:      list.Limit,
		TotalItems: list.TotalCount,
		TotalPages: totalPages,
	}
}

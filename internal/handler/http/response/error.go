package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Checked in order; the first match wins.
var domainErrors = []errorMapping{
	// Auth
	{auth.ErrInvalidToken, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token"},
	{auth.ErrManagerAccessRequired, http.StatusForbidden, CodeForbidden, "Manager or owner role required"},

	// Employee
	{employee.ErrEmployeeNotFound, http.StatusNotFound, CodeEmployeeNotFound, "Employee not found"},
	{employee.ErrEmployeeCodeExists, http.StatusConflict, CodeEmployeeCodeExists, "Employee code already exists"},

	// Payroll
	{payroll.ErrPayrollRecordNotFound, http.StatusNotFound, CodeRecordNotFound, "Payroll record not found"},
	{payroll.ErrPeriodAlreadyProcessed, http.StatusConflict, CodePeriodProcessed, "Payroll period already processed"},
	{payroll.ErrPayrollRecordAlreadyExists, http.StatusConflict, CodeRecordExists, "Payroll record already exists for this employee and period"},
	{payroll.ErrPayrollRecordAlreadyPaid, http.StatusConflict, CodeRecordPaid, "Payroll record already paid"},
	{payroll.ErrApprovalAlreadyDecided, http.StatusConflict, CodeApprovalDecided, "Payroll record approval already decided"},
	{payroll.ErrConcurrentModification, http.StatusConflict, CodeVersionConflict, "Payroll record was modified concurrently, reload and retry"},

	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout, "Request timed out"},
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}
	if errors.Is(err, payroll.ErrInvalidPeriod) {
		ValidationError(w, map[string]string{"period": err.Error()})
		return
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			Fail(w, m.status, m.code, m.message, nil)
			return
		}
	}

	slog.Error("Unhandled error", "error", err)
	Fail(w, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred", nil)
}

package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPayrollRecordNotFound      = errors.New("payroll record not found")
	ErrPayrollRecordAlreadyExists = errors.New("payroll record already exists for this employee and period")
	ErrPeriodAlreadyProcessed     = errors.New("period already processed")
	ErrPayrollRecordAlreadyPaid   = errors.New("payroll record already paid, cannot modify")
	ErrApprovalAlreadyDecided     = errors.New("payroll record approval already decided")
	ErrConcurrentModification     = errors.New("payroll record was modified concurrently")
	ErrInvalidPeriod              = errors.New("invalid payroll period")
	ErrTotalsMismatch             = errors.New("payroll totals do not match their components")
)

// EmployeeProcessingError is one per-employee failure of a processing run.
// It is collected in ProcessSummary and never returned by Process itself.
type EmployeeProcessingError struct {
	EmployeeID string
	Err        error
}

func (e *EmployeeProcessingError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeProcessingError) Unwrap() error {
	return e.Err
}

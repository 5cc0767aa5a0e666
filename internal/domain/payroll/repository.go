package payroll

import "context"

// PayrollRepository defines data access methods for payroll records.
// Records are never deleted, so there is no delete method.
type PayrollRepository interface {
	CreatePayrollRecord(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	GetPayrollRecordByID(ctx context.Context, id string) (PayrollRecord, error)
	ExistsForPeriod(ctx context.Context, month, year int) (bool, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) ([]PayrollRecord, int64, error)
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]PayrollRecord, error)

	// UpdatePayrollRecord writes record only if the stored version equals
	// expectedVersion and bumps the version. A stale write returns
	// ErrConcurrentModification.
	UpdatePayrollRecord(ctx context.Context, record PayrollRecord, expectedVersion int) (PayrollRecord, error)

	GetPeriodStats(ctx context.Context, month, year int) (PeriodStats, error)
}

package payroll

import "context"

type PayrollService interface {
	// Processing
	Process(ctx context.Context, req ProcessPayrollRequest) (ProcessSummary, error)

	// Records
	GetPayrollRecord(ctx context.Context, id string) (PayrollRecordResponse, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) (ListPayrollRecordResponse, error)
	UpdatePayrollRecord(ctx context.Context, req UpdatePayrollRecordRequest) (PayrollRecordResponse, error)

	// Lifecycle
	MarkPaid(ctx context.Context, req MarkPaidRequest) (PayrollRecordResponse, error)
	Approve(ctx context.Context, req ApprovalRequest) (PayrollRecordResponse, error)
	Reject(ctx context.Context, req ApprovalRequest) (PayrollRecordResponse, error)

	// Aggregation
	StatsForPeriod(ctx context.Context, month, year int) (PeriodStats, error)
	HistoryForEmployee(ctx context.Context, employeeID string, limit int) (ListPayrollRecordResponse, error)

	// Slip
	RenderSlip(ctx context.Context, id string) (SlipResponse, error)
}

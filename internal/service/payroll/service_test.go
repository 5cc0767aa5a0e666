package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/payslip"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var fixedNow = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc       *PayrollServiceImpl
	employees employee.EmployeeRepository
	records   payroll.PayrollRepository
}

func newTestEnv(t *testing.T, fileStorage storage.FileStorage) testEnv {
	t.Helper()

	db, err := sqlite.Open(t.TempDir() + "/payroll.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	renderer, err := payslip.NewHTMLRenderer(language.English)
	require.NoError(t, err)

	employees := sqlite.NewEmployeeRepository(db)
	records := sqlite.NewPayrollRepository(db)
	svc := NewPayrollService(records, employees, renderer, fileStorage, Options{
		Workers: 4,
		Clock:   func() time.Time { return fixedNow },
	})

	return testEnv{svc: svc, employees: employees, records: records}
}

func (e testEnv) seed(t *testing.T, code string, basic int64) employee.Employee {
	t.Helper()

	emp, err := e.employees.Create(context.Background(), employee.Employee{
		EmployeeCode: code,
		FullName:     "Employee " + code,
		Salary: employee.SalaryConfig{
			Basic:            decimal.NewFromInt(basic),
			HousingAllowance: decimal.NewFromInt(500),
			Allowances:       decimal.NewFromInt(200),
		},
		Deductions: employee.DeductionConfig{
			Tax:           decimal.NewFromInt(300),
			ProvidentFund: decimal.NewFromInt(150),
			Insurance:     decimal.NewFromInt(50),
		},
	})
	require.NoError(t, err)
	return emp
}

func (e testEnv) process(t *testing.T, month, year int) payroll.ProcessSummary {
	t.Helper()

	summary, err := e.svc.Process(context.Background(), payroll.ProcessPayrollRequest{
		PeriodMonth: month, PeriodYear: year, InitiatorID: "admin-1",
	})
	require.NoError(t, err)
	return summary
}

func (e testEnv) onlyRecord(t *testing.T, emp employee.Employee) payroll.PayrollRecord {
	t.Helper()

	history, err := e.records.ListByEmployee(context.Background(), emp.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	return history[0]
}

// ========== PROCESSING ==========

func TestProcess_CreatesRecordPerActiveEmployee(t *testing.T) {
	env := newTestEnv(t, nil)
	emp := env.seed(t, "E001", 3000)
	other := env.seed(t, "E002", 4000)
	gone := env.seed(t, "E003", 5000)
	require.NoError(t, env.employees.UpdateStatus(context.Background(), gone.ID, employee.EmploymentStatusTerminated))

	summary := env.process(t, 3, 2024)

	assert.Equal(t, 3, summary.PeriodMonth)
	assert.Equal(t, 2024, summary.PeriodYear)
	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Empty(t, summary.Errors)

	rec := env.onlyRecord(t, emp)
	assert.True(t, rec.GrossSalary.Equal(decimal.NewFromInt(3700)))
	assert.True(t, rec.TotalDeductions.Equal(decimal.NewFromInt(500)))
	assert.True(t, rec.NetSalary.Equal(decimal.NewFromInt(3200)))
	assert.Equal(t, payroll.PaymentStatusPending, rec.PaymentStatus)
	assert.Equal(t, payroll.ApprovalStatusPending, rec.ApprovalStatus)
	assert.Equal(t, "admin-1", rec.ProcessedBy)
	assert.True(t, rec.ProcessedAt.Equal(fixedNow))
	assert.Equal(t, 21, rec.Attendance.WorkingDays)

	assert.True(t, env.onlyRecord(t, other).NetSalary.Equal(decimal.NewFromInt(4200)))

	history, err := env.records.ListByEmployee(context.Background(), gone.ID, 12)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcess_PeriodAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "E001", 3000)
	env.process(t, 3, 2024)

	_, err := env.svc.Process(context.Background(), payroll.ProcessPayrollRequest{
		PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1",
	})
	assert.ErrorIs(t, err, payroll.ErrPeriodAlreadyProcessed)
}

func TestProcess_InvalidEmployeeIsCollected(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 1; i <= 9; i++ {
		env.seed(t, fmt.Sprintf("E%03d", i), 3000)
	}
	bad := env.seed(t, "E010", 0)

	summary := env.process(t, 3, 2024)

	assert.Equal(t, 9, summary.ProcessedCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, bad.ID, summary.Errors[0].EmployeeID)
	assert.ErrorIs(t, summary.Errors[0].Err, employee.ErrNoBaseSalary)

	var perr *payroll.EmployeeProcessingError
	require.True(t, errors.As(summary.Errors[0].Err, &perr))
	assert.Equal(t, bad.ID, perr.EmployeeID)
}

func TestProcess_NoActiveEmployees(t *testing.T) {
	env := newTestEnv(t, nil)

	summary := env.process(t, 1, 2025)
	assert.Zero(t, summary.ProcessedCount)
	assert.Zero(t, summary.FailedCount)
	assert.NotNil(t, summary.Errors)
}

func TestProcess_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Process(context.Background(), payroll.ProcessPayrollRequest{PeriodMonth: 13, PeriodYear: 2024, InitiatorID: "admin-1"})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestProcess_ConcurrentRunsCreateOneRecordPerEmployee(t *testing.T) {
	env := newTestEnv(t, nil)
	const n = 8
	for i := 1; i <= n; i++ {
		env.seed(t, fmt.Sprintf("E%03d", i), 3000)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := env.svc.Process(context.Background(), payroll.ProcessPayrollRequest{
				PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1",
			})
			if err != nil {
				assert.ErrorIs(t, err, payroll.ErrPeriodAlreadyProcessed)
				return
			}
			for _, e := range summary.Errors {
				assert.ErrorIs(t, e.Err, payroll.ErrPayrollRecordAlreadyExists)
			}
			mu.Lock()
			processed += summary.ProcessedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, n, processed)
	month, year := 3, 2024
	_, total, err := env.records.ListPayrollRecords(context.Background(), payroll.PayrollFilter{PeriodMonth: &month, PeriodYear: &year})
	require.NoError(t, err)
	assert.EqualValues(t, n, total)
}

func TestProcess_CanceledContext(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "E001", 3000)
	env.seed(t, "E002", 3000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.Process(ctx, payroll.ProcessPayrollRequest{PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

// interruptingRepository stores the record of the after-th create and then
// cancels the run, failing that create with the context error the way a
// driver does when the deadline passes right after the commit.
type interruptingRepository struct {
	payroll.PayrollRepository
	after  int
	cancel context.CancelFunc

	mu      sync.Mutex
	creates int
}

func (r *interruptingRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	created, err := r.PayrollRepository.CreatePayrollRecord(ctx, record)
	if err != nil {
		return created, err
	}

	r.mu.Lock()
	r.creates++
	interrupt := r.creates == r.after
	r.mu.Unlock()

	if interrupt {
		r.cancel()
		return payroll.PayrollRecord{}, fmt.Errorf("failed to get payroll record: %w", ctx.Err())
	}
	return created, nil
}

// slowRepository holds every create open for delay after the insert.
type slowRepository struct {
	payroll.PayrollRepository
	delay time.Duration
}

func (r slowRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	created, err := r.PayrollRepository.CreatePayrollRecord(ctx, record)
	if err != nil {
		return created, err
	}

	select {
	case <-time.After(r.delay):
		return created, nil
	case <-ctx.Done():
		return payroll.PayrollRecord{}, ctx.Err()
	}
}

func (e testEnv) storedForPeriod(t *testing.T, month, year int) int64 {
	t.Helper()

	_, total, err := e.records.ListPayrollRecords(context.Background(), payroll.PayrollFilter{PeriodMonth: &month, PeriodYear: &year})
	require.NoError(t, err)
	return total
}

func TestProcess_InterruptedMidRun(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 1; i <= 10; i++ {
		env.seed(t, fmt.Sprintf("E%03d", i), 3000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &interruptingRepository{PayrollRepository: env.records, after: 3, cancel: cancel}
	svc := NewPayrollService(repo, env.employees, nil, nil, Options{
		Workers: 1,
		Clock:   func() time.Time { return fixedNow },
	})

	summary, err := svc.Process(ctx, payroll.ProcessPayrollRequest{PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1"})
	require.ErrorIs(t, err, context.Canceled)

	// The third record was committed before the interruption and counts as processed.
	assert.Equal(t, 3, summary.ProcessedCount)
	assert.Equal(t, 7, summary.FailedCount)
	assert.EqualValues(t, summary.ProcessedCount, env.storedForPeriod(t, 3, 2024))
	require.Len(t, summary.Errors, 7)
	for _, perr := range summary.Errors {
		assert.ErrorIs(t, perr.Err, context.Canceled)
	}

	_, err = svc.Process(context.Background(), payroll.ProcessPayrollRequest{PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1"})
	assert.ErrorIs(t, err, payroll.ErrPeriodAlreadyProcessed)
}

func TestProcess_BatchTimeoutMidRun(t *testing.T) {
	env := newTestEnv(t, nil)
	const n = 10
	for i := 1; i <= n; i++ {
		env.seed(t, fmt.Sprintf("E%03d", i), 3000)
	}

	svc := NewPayrollService(slowRepository{PayrollRepository: env.records, delay: 20 * time.Millisecond}, env.employees, nil, nil, Options{
		Workers:      1,
		BatchTimeout: 50 * time.Millisecond,
		Clock:        func() time.Time { return fixedNow },
	})

	summary, err := svc.Process(context.Background(), payroll.ProcessPayrollRequest{PeriodMonth: 3, PeriodYear: 2024, InitiatorID: "admin-1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 3, summary.PeriodMonth)
	assert.Equal(t, n, summary.ProcessedCount+summary.FailedCount)
	assert.Positive(t, summary.FailedCount)
	assert.Len(t, summary.Errors, summary.FailedCount)
	assert.EqualValues(t, summary.ProcessedCount, env.storedForPeriod(t, 3, 2024))
}

// ========== LIFECYCLE ==========

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	emp := env.seed(t, "E001", 3000)
	env.process(t, 3, 2024)
	rec := env.onlyRecord(t, emp)

	method := "bank_transfer"
	paid, err := env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rec.ID, TransactionID: "TXN123", PaymentMethod: &method})
	require.NoError(t, err)
	assert.Equal(t, string(payroll.PaymentStatusPaid), paid.PaymentStatus)
	require.NotNil(t, paid.TransactionID)
	assert.Equal(t, "TXN123", *paid.TransactionID)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, fixedNow.Format(time.RFC3339), *paid.PaymentDate)
	assert.Equal(t, 2, paid.Version)

	again, err := env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rec.ID, TransactionID: "TXN123"})
	require.NoError(t, err)
	assert.Equal(t, paid.Version, again.Version)

	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rec.ID, TransactionID: "TXN999"})
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordAlreadyPaid)

	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rec.ID})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: "missing", TransactionID: "TXN1"})
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordNotFound)
}

func TestApproveReject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	a := env.seed(t, "E001", 3000)
	b := env.seed(t, "E002", 3000)
	env.process(t, 3, 2024)

	approved, err := env.svc.Approve(ctx, payroll.ApprovalRequest{ID: env.onlyRecord(t, a).ID, ApproverID: "manager-1"})
	require.NoError(t, err)
	assert.Equal(t, string(payroll.ApprovalStatusApproved), approved.ApprovalStatus)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "manager-1", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	_, err = env.svc.Reject(ctx, payroll.ApprovalRequest{ID: approved.ID, ApproverID: "manager-1"})
	assert.ErrorIs(t, err, payroll.ErrApprovalAlreadyDecided)

	reason := "overtime not verified"
	rejected, err := env.svc.Reject(ctx, payroll.ApprovalRequest{ID: env.onlyRecord(t, b).ID, ApproverID: "manager-1", Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, string(payroll.ApprovalStatusRejected), rejected.ApprovalStatus)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, reason, *rejected.RejectionReason)

	// Approval does not gate payment.
	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rejected.ID, TransactionID: "TXN1"})
	assert.NoError(t, err)
}

func TestUpdatePayrollRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	emp := env.seed(t, "E001", 3000)
	env.process(t, 3, 2024)
	rec := env.onlyRecord(t, emp)

	bonus, hours, rate, loan := decimal.NewFromInt(250), decimal.NewFromInt(10), decimal.NewFromInt(15), decimal.NewFromInt(100)
	travel := decimal.NewFromInt(40)
	version := 1
	updated, err := env.svc.UpdatePayrollRecord(ctx, payroll.UpdatePayrollRecordRequest{
		ID:              rec.ID,
		ExpectedVersion: &version,
		Earnings:        &payroll.EarningsPatch{Bonuses: &bonus, OvertimeHours: &hours, OvertimeRate: &rate},
		Deductions:      &payroll.DeductionsPatch{Loan: &loan},
		Reimbursements:  &payroll.ReimbursementsPatch{Travel: &travel},
	})
	require.NoError(t, err)

	// 3700 + 250 + 150 overtime - (500 + 100) + 40
	assert.True(t, updated.Totals.TotalEarnings.Equal(decimal.NewFromInt(4100)))
	assert.True(t, updated.Totals.GrossSalary.Equal(decimal.NewFromInt(3700)))
	assert.True(t, updated.Totals.TotalDeductions.Equal(decimal.NewFromInt(600)))
	assert.True(t, updated.Totals.NetSalary.Equal(decimal.NewFromInt(3540)))
	assert.True(t, updated.Earnings.Overtime.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 2, updated.Version)

	// A client still holding version 1 is rejected.
	_, err = env.svc.UpdatePayrollRecord(ctx, payroll.UpdatePayrollRecordRequest{ID: rec.ID, ExpectedVersion: &version, Earnings: &payroll.EarningsPatch{Bonuses: &bonus}})
	assert.ErrorIs(t, err, payroll.ErrConcurrentModification)

	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: rec.ID, TransactionID: "TXN1"})
	require.NoError(t, err)

	_, err = env.svc.UpdatePayrollRecord(ctx, payroll.UpdatePayrollRecordRequest{ID: rec.ID, Earnings: &payroll.EarningsPatch{Bonuses: &bonus}})
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordAlreadyPaid)
}

func TestUpdatePayrollRecord_NetFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	emp := env.seed(t, "E001", 3000)
	env.process(t, 3, 2024)

	advance := decimal.NewFromInt(10000)
	updated, err := env.svc.UpdatePayrollRecord(ctx, payroll.UpdatePayrollRecordRequest{
		ID:         env.onlyRecord(t, emp).ID,
		Deductions: &payroll.DeductionsPatch{Advance: &advance},
	})
	require.NoError(t, err)
	assert.True(t, updated.Totals.NetSalary.IsZero())
}

// ========== AGGREGATION ==========

func TestStatsForPeriod(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	stats, err := env.svc.StatsForPeriod(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.True(t, stats.TotalNet.IsZero())

	a := env.seed(t, "E001", 3000)
	b := env.seed(t, "E002", 3000)
	env.process(t, 3, 2024)

	_, err = env.svc.MarkPaid(ctx, payroll.MarkPaidRequest{ID: env.onlyRecord(t, a).ID, TransactionID: "TXN1"})
	require.NoError(t, err)

	failed := env.onlyRecord(t, b)
	failed.PaymentStatus = payroll.PaymentStatusFailed
	_, err = env.records.UpdatePayrollRecord(ctx, failed, failed.Version)
	require.NoError(t, err)

	stats, err = env.svc.StatsForPeriod(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.PaidCount)
	assert.True(t, stats.TotalGross.Equal(decimal.NewFromInt(3700)))
	assert.True(t, stats.TotalNet.Equal(decimal.NewFromInt(3200)))

	_, err = env.svc.StatsForPeriod(ctx, 0, 2024)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
}

func TestHistoryForEmployee(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	emp := env.seed(t, "E001", 3000)

	for _, p := range []payroll.Period{{Month: 11, Year: 2023}, {Month: 2, Year: 2024}, {Month: 12, Year: 2023}, {Month: 1, Year: 2024}} {
		env.process(t, p.Month, p.Year)
	}

	history, err := env.svc.HistoryForEmployee(ctx, emp.ID, 0)
	require.NoError(t, err)
	require.Len(t, history.Data, 4)
	assert.Equal(t, DefaultHistoryLimit, history.Limit)
	got := make([]string, 0, len(history.Data))
	for _, r := range history.Data {
		got = append(got, fmt.Sprintf("%d-%02d", r.PeriodYear, r.PeriodMonth))
	}
	assert.Equal(t, []string{"2024-02", "2024-01", "2023-12", "2023-11"}, got)

	history, err = env.svc.HistoryForEmployee(ctx, emp.ID, 2)
	require.NoError(t, err)
	assert.Len(t, history.Data, 2)

	history, err = env.svc.HistoryForEmployee(ctx, emp.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, history.Limit)

	// Termination keeps the history readable.
	require.NoError(t, env.employees.UpdateStatus(ctx, emp.ID, employee.EmploymentStatusTerminated))
	history, err = env.svc.HistoryForEmployee(ctx, emp.ID, 12)
	require.NoError(t, err)
	assert.Len(t, history.Data, 4)

	_, err = env.svc.HistoryForEmployee(ctx, "", 12)
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestListPayrollRecords(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	for i := 1; i <= 3; i++ {
		env.seed(t, fmt.Sprintf("E%03d", i), 3000)
	}
	env.process(t, 3, 2024)

	list, err := env.svc.ListPayrollRecords(ctx, payroll.PayrollFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.TotalCount)
	assert.Len(t, list.Data, 2)
	assert.Equal(t, 1, list.Page)

	status := "paid"
	list, err = env.svc.ListPayrollRecords(ctx, payroll.PayrollFilter{PaymentStatus: &status})
	require.NoError(t, err)
	assert.Empty(t, list.Data)

	bad := "settled"
	_, err = env.svc.ListPayrollRecords(ctx, payroll.PayrollFilter{PaymentStatus: &bad})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

// ========== SLIP ==========

func TestRenderSlip(t *testing.T) {
	ctx := context.Background()
	files, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)

	env := newTestEnv(t, files)
	emp := env.seed(t, "E001", 3000)
	env.process(t, 3, 2024)
	rec := env.onlyRecord(t, emp)

	slip, err := env.svc.RenderSlip(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, slip.RecordID)
	assert.Equal(t, "payslip_E001_2024-03.html", slip.FileName)
	assert.Contains(t, string(slip.Content), "March 2024")
	assert.Equal(t, "http://localhost:8080/files/payslips/2024-03/payslip_E001_2024-03.html", slip.URL)

	exists, err := files.Exists(ctx, "payslips/2024-03/payslip_E001_2024-03.html")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = env.svc.RenderSlip(ctx, "missing")
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordNotFound)
}

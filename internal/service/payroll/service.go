package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/payslip"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 4
	DefaultHistoryLimit = 12
	MaxHistoryLimit     = 100

	commitCheckTimeout = 5 * time.Second
)

type Options struct {
	// Workers bounds concurrent record creation within one run.
	Workers int
	// BatchTimeout caps one processing run; zero means only the caller's deadline applies.
	BatchTimeout time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type PayrollServiceImpl struct {
	payrollRepo  payroll.PayrollRepository
	employeeRepo employee.EmployeeRepository
	renderer     payslip.Renderer
	fileStorage  storage.FileStorage
	workers      int
	batchTimeout time.Duration
	now          func() time.Time
	tracer       trace.Tracer
}

// NewPayrollService wires the payroll engine. fileStorage may be nil, in which
// case rendered slips are returned without being archived.
func NewPayrollService(
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	renderer payslip.Renderer,
	fileStorage storage.FileStorage,
	opts Options,
) *PayrollServiceImpl {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &PayrollServiceImpl{
		payrollRepo:  payrollRepo,
		employeeRepo: employeeRepo,
		renderer:     renderer,
		fileStorage:  fileStorage,
		workers:      opts.Workers,
		batchTimeout: opts.BatchTimeout,
		now:          opts.Clock,
		tracer:       otel.Tracer("github.com/cmlabs-hris/payroll-backend-go/internal/service/payroll"),
	}
}

var _ payroll.PayrollService = (*PayrollServiceImpl)(nil)

// ========== PROCESSING ==========

// Process creates one pending record per active employee for the period.
// Per-employee failures are collected in the summary and never abort the run.
// When ctx ends mid-run, the employees not yet started are reported as failed
// and the summary is returned together with the context error.
func (s *PayrollServiceImpl) Process(ctx context.Context, req payroll.ProcessPayrollRequest) (payroll.ProcessSummary, error) {
	if err := req.Validate(); err != nil {
		return payroll.ProcessSummary{}, err
	}
	period := req.Period()

	ctx, span := s.tracer.Start(ctx, "payroll.Process", trace.WithAttributes(
		attribute.String("payroll.period", period.String()),
		attribute.String("payroll.initiator_id", req.InitiatorID),
	))
	defer span.End()

	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	exists, err := s.payrollRepo.ExistsForPeriod(ctx, period.Month, period.Year)
	if err != nil {
		span.RecordError(err)
		return payroll.ProcessSummary{}, fmt.Errorf("failed to check payroll period: %w", err)
	}
	if exists {
		return payroll.ProcessSummary{}, payroll.ErrPeriodAlreadyProcessed
	}

	employees, err := s.employeeRepo.ListByStatus(ctx, employee.EmploymentStatusActive)
	if err != nil {
		span.RecordError(err)
		return payroll.ProcessSummary{}, fmt.Errorf("failed to list active employees: %w", err)
	}

	slog.Info("Payroll processing started",
		"period", period.String(), "initiator_id", req.InitiatorID, "employees", len(employees))

	summary := payroll.ProcessSummary{
		PeriodMonth: period.Month,
		PeriodYear:  period.Year,
		Errors:      []payroll.ProcessError{},
	}
	var mu sync.Mutex

	fail := func(employeeID string, cause error) {
		perr := &payroll.EmployeeProcessingError{EmployeeID: employeeID, Err: cause}
		slog.Warn("Payroll processing failed for employee",
			"period", period.String(), "employee_id", employeeID, "error", cause)

		mu.Lock()
		defer mu.Unlock()
		summary.FailedCount++
		summary.Errors = append(summary.Errors, payroll.ProcessError{
			EmployeeID: employeeID,
			Message:    cause.Error(),
			Err:        perr,
		})
	}

	processedAt := s.now().UTC()

	// Per-employee errors are collected, so the group itself never fails.
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			fail(emp.ID, err)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fail(emp.ID, err)
				return nil
			}

			record, err := payroll.NewRecord(emp, period, req.InitiatorID, processedAt)
			if err != nil {
				fail(emp.ID, err)
				return nil
			}
			id, err := uuid.NewV7()
			if err != nil {
				fail(emp.ID, fmt.Errorf("failed to generate payroll record id: %w", err))
				return nil
			}
			record.ID = id.String()

			if _, err := s.payrollRepo.CreatePayrollRecord(ctx, record); err != nil && !s.committed(ctx, record.ID, err) {
				fail(emp.ID, err)
				return nil
			}

			mu.Lock()
			summary.ProcessedCount++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Errors, func(i, j int) bool {
		return summary.Errors[i].EmployeeID < summary.Errors[j].EmployeeID
	})

	span.SetAttributes(
		attribute.Int("payroll.processed_count", summary.ProcessedCount),
		attribute.Int("payroll.failed_count", summary.FailedCount),
	)

	slog.Info("Payroll processing finished",
		"period", period.String(), "processed", summary.ProcessedCount, "failed", summary.FailedCount)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payroll processing interrupted")
		return summary, err
	}

	return summary, nil
}

// committed reports whether a create that failed with a context error was
// stored anyway, which happens when the deadline passes after the insert.
func (s *PayrollServiceImpl) committed(ctx context.Context, id string, createErr error) bool {
	if !errors.Is(createErr, context.Canceled) && !errors.Is(createErr, context.DeadlineExceeded) {
		return false
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitCheckTimeout)
	defer cancel()

	_, err := s.payrollRepo.GetPayrollRecordByID(checkCtx, id)
	if err != nil && !errors.Is(err, payroll.ErrPayrollRecordNotFound) {
		slog.Warn("Could not confirm payroll record after interrupted create", "record_id", id, "error", err)
	}
	return err == nil
}

// ========== RECORDS ==========

func (s *PayrollServiceImpl) GetPayrollRecord(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, id)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return record.ToResponse(), nil
}

func (s *PayrollServiceImpl) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}
	filter.Normalize()

	records, total, err := s.payrollRepo.ListPayrollRecords(ctx, filter)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	return toListResponse(records, total, filter.Page, filter.Limit), nil
}

// UpdatePayrollRecord applies a partial change and recomputes every total.
// Paid records are settled and refuse changes.
func (s *PayrollServiceImpl) UpdatePayrollRecord(ctx context.Context, req payroll.UpdatePayrollRecordRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, req.ID)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}
	if record.PaymentStatus == payroll.PaymentStatusPaid {
		return payroll.PayrollRecordResponse{}, payroll.ErrPayrollRecordAlreadyPaid
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != record.Version {
		return payroll.PayrollRecordResponse{}, payroll.ErrConcurrentModification
	}

	req.Apply(&record)
	record.ApplyTotals()

	updated, err := s.payrollRepo.UpdatePayrollRecord(ctx, record, record.Version)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return updated.ToResponse(), nil
}

// ========== LIFECYCLE ==========

// MarkPaid settles a record. Repeating the call with the same transaction id
// returns the record unchanged; a different id is a conflict.
func (s *PayrollServiceImpl) MarkPaid(ctx context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, req.ID)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	if record.PaymentStatus == payroll.PaymentStatusPaid {
		if record.TransactionID != nil && *record.TransactionID == req.TransactionID {
			return record.ToResponse(), nil
		}
		return payroll.PayrollRecordResponse{}, payroll.ErrPayrollRecordAlreadyPaid
	}

	paidAt := s.now().UTC()
	txnID := req.TransactionID
	record.PaymentStatus = payroll.PaymentStatusPaid
	record.PaymentDate = &paidAt
	record.TransactionID = &txnID
	if req.PaymentMethod != nil {
		record.PaymentMethod = req.PaymentMethod
	}

	updated, err := s.payrollRepo.UpdatePayrollRecord(ctx, record, record.Version)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	slog.Info("Payroll record marked paid", "record_id", updated.ID, "transaction_id", txnID)

	return updated.ToResponse(), nil
}

func (s *PayrollServiceImpl) Approve(ctx context.Context, req payroll.ApprovalRequest) (payroll.PayrollRecordResponse, error) {
	return s.decide(ctx, req, payroll.ApprovalStatusApproved)
}

func (s *PayrollServiceImpl) Reject(ctx context.Context, req payroll.ApprovalRequest) (payroll.PayrollRecordResponse, error) {
	return s.decide(ctx, req, payroll.ApprovalStatusRejected)
}

func (s *PayrollServiceImpl) decide(ctx context.Context, req payroll.ApprovalRequest, decision payroll.ApprovalStatus) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, req.ID)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}
	if record.ApprovalStatus != payroll.ApprovalStatusPending {
		return payroll.PayrollRecordResponse{}, payroll.ErrApprovalAlreadyDecided
	}

	decidedAt := s.now().UTC()
	approver := req.ApproverID
	record.ApprovalStatus = decision
	record.ApprovedBy = &approver
	record.ApprovedAt = &decidedAt
	if decision == payroll.ApprovalStatusRejected {
		record.RejectionReason = req.Reason
	}

	updated, err := s.payrollRepo.UpdatePayrollRecord(ctx, record, record.Version)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	slog.Info("Payroll record approval decided", "record_id", updated.ID, "decision", decision, "approver_id", approver)

	return updated.ToResponse(), nil
}

// ========== AGGREGATION ==========

func (s *PayrollServiceImpl) StatsForPeriod(ctx context.Context, month, year int) (payroll.PeriodStats, error) {
	if err := (payroll.Period{Month: month, Year: year}).Validate(); err != nil {
		return payroll.PeriodStats{}, err
	}

	return s.payrollRepo.GetPeriodStats(ctx, month, year)
}

// HistoryForEmployee lists an employee's records newest period first.
func (s *PayrollServiceImpl) HistoryForEmployee(ctx context.Context, employeeID string, limit int) (payroll.ListPayrollRecordResponse, error) {
	if validator.IsEmpty(employeeID) {
		return payroll.ListPayrollRecordResponse{}, validator.ValidationErrors{
			{Field: "employee_id", Message: "is required"},
		}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.payrollRepo.ListByEmployee(ctx, employeeID, limit)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	return toListResponse(records, int64(len(records)), 1, limit), nil
}

// ========== SLIP ==========

// RenderSlip renders the slip of one record and archives it when file
// storage is configured.
func (s *PayrollServiceImpl) RenderSlip(ctx context.Context, id string) (payroll.SlipResponse, error) {
	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, id)
	if err != nil {
		return payroll.SlipResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, record.EmployeeID)
	if err != nil {
		return payroll.SlipResponse{}, fmt.Errorf("failed to load employee for slip: %w", err)
	}

	doc, err := s.renderer.Render(ctx, payslip.Input{Record: record, Employee: emp})
	if err != nil {
		return payroll.SlipResponse{}, fmt.Errorf("failed to render slip: %w", err)
	}

	slip := payroll.SlipResponse{
		RecordID:    record.ID,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Content:     doc.Content,
	}

	if s.fileStorage != nil {
		key := path.Join("payslips", payroll.Period{Month: record.PeriodMonth, Year: record.PeriodYear}.String(), doc.FileName)
		stored, err := s.fileStorage.Save(ctx, key, bytes.NewReader(doc.Content))
		if err != nil {
			return payroll.SlipResponse{}, fmt.Errorf("failed to archive slip: %w", err)
		}
		slip.URL = s.fileStorage.URL(stored)
	}

	return slip, nil
}

func toListResponse(records []payroll.PayrollRecord, total int64, page, limit int) payroll.ListPayrollRecordResponse {
	data := make([]payroll.PayrollRecordResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, rec.ToResponse())
	}

	return payroll.ListPayrollRecordResponse{
		Data:       data,
		TotalCount: total,
		Page:       page,
		Limit:      limit,
	}
}
